package violation

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/model"

// Violate writes state record fields from outside the serialized queue.
// The analyzer must flag every assignment below.
func Violate(sc *model.SessionContext, st *model.PlayerState) {
	sc.ResumeKind = model.KindPaused
	sc.Active = nil
	st.Kind = model.KindIdle
	st.TargetSeconds += 1
}

// Observe reads state and builds fresh values. None of this may be
// flagged.
func Observe(st model.PlayerState) model.StateKind {
	next := model.Loading(model.SourceNative, "http://origin/video.mp4")
	_ = next
	return st.Kind
}
