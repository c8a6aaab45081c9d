// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/metrics"
)

// Extensions that never belong in a fixture tree. Requests for them are
// refused even when a file exists.
var sensitiveFixtureExtensions = []string{
	".yaml", ".yml", ".key", ".pem", ".env", ".db", ".ini", ".conf",
}

var (
	errFixtureNotFound  = errors.New("fixture not found")
	errFixtureEscape    = errors.New("fixture path escape")
	errFixtureDirectory = errors.New("fixture directory path")
)

// fixtureServer serves manifest and media fixtures from the fixtures
// directory with checks against path traversal, symlink escapes and
// directory listing. Sessions load these assets over plain HTTP in
// emulator setups.
func (s *Server) fixtureServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "fixtures")

		path, ok := validateFixtureRequest(w, r, logger)
		if !ok {
			return
		}

		realPath, err := resolveFixturePath(s.cfg.FixturesDir, path)
		if err != nil {
			denyFixtureResolve(w, path, realPath, err, logger)
			return
		}

		if err := serveFixture(w, r, realPath, path, logger); err != nil {
			logger.Error().Err(err).Str(log.FieldPath, realPath).Msg("could not serve fixture")
			metrics.IncFixtureRequest("internal_error")
			writeError(w, http.StatusInternalServerError, Error{Code: codeInternal, Message: "internal error"})
		}
	})
}

func validateFixtureRequest(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (string, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		logger.Warn().Str(log.FieldPath, r.URL.Path).Str(log.FieldReason, "method_not_allowed").Msg("fixture request denied")
		metrics.IncFixtureRequest("method_not_allowed")
		writeError(w, http.StatusMethodNotAllowed, Error{Code: codeMethodNotAllowed, Message: "method not allowed"})
		return "", false
	}

	path := r.URL.Path
	if isPathTraversal(path) {
		logger.Warn().Str(log.FieldPath, path).Str(log.FieldReason, "path_escape").Msg("fixture request denied")
		metrics.IncFixtureRequest("path_escape")
		writeError(w, http.StatusForbidden, Error{Code: codeBadRequest, Message: "forbidden"})
		return "", false
	}
	if strings.HasSuffix(path, "/") || path == "" {
		logger.Warn().Str(log.FieldPath, path).Str(log.FieldReason, "directory_listing").Msg("fixture request denied")
		metrics.IncFixtureRequest("directory_listing")
		writeError(w, http.StatusForbidden, Error{Code: codeBadRequest, Message: "forbidden"})
		return "", false
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, denied := range sensitiveFixtureExtensions {
		if ext == denied {
			logger.Warn().Str(log.FieldPath, path).Str(log.FieldReason, "forbidden_extension").Msg("fixture request denied")
			metrics.IncFixtureRequest("forbidden_extension")
			writeError(w, http.StatusForbidden, Error{Code: codeBadRequest, Message: "forbidden"})
			return "", false
		}
	}

	return path, true
}

// resolveFixturePath maps the request path into the fixtures dir and
// verifies the symlink-resolved result still lives inside it.
func resolveFixturePath(fixturesDir, requestPath string) (string, error) {
	absRoot, err := filepath.Abs(fixturesDir)
	if err != nil {
		return "", fmt.Errorf("resolve fixtures dir: %w", err)
	}

	fullPath := filepath.Join(absRoot, requestPath)
	realPath, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fullPath, fmt.Errorf("%w: %s", errFixtureNotFound, fullPath)
		}
		return fullPath, fmt.Errorf("eval symlinks for request path: %w", err)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return realPath, fmt.Errorf("eval symlinks for fixtures dir: %w", err)
	}

	relPath, err := filepath.Rel(realRoot, realPath)
	if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return realPath, fmt.Errorf("%w: %s", errFixtureEscape, realPath)
	}

	info, err := os.Stat(realPath)
	if err != nil {
		if os.IsNotExist(err) {
			return realPath, fmt.Errorf("%w: %s", errFixtureNotFound, realPath)
		}
		return realPath, fmt.Errorf("stat resolved path: %w", err)
	}
	if info.IsDir() {
		return realPath, fmt.Errorf("%w: %s", errFixtureDirectory, realPath)
	}

	return realPath, nil
}

func denyFixtureResolve(w http.ResponseWriter, requestPath, resolvedPath string, err error, logger zerolog.Logger) {
	switch {
	case errors.Is(err, errFixtureNotFound):
		logger.Debug().Str(log.FieldPath, resolvedPath).Msg("fixture not found")
		metrics.IncFixtureRequest("not_found")
		writeError(w, http.StatusNotFound, Error{Code: codeNotFound, Message: "not found"})
	case errors.Is(err, errFixtureEscape):
		logger.Warn().
			Str(log.FieldPath, requestPath).
			Str("resolved_path", resolvedPath).
			Str(log.FieldReason, "path_escape").
			Msg("fixture path escapes fixtures directory")
		metrics.IncFixtureRequest("path_escape")
		writeError(w, http.StatusForbidden, Error{Code: codeBadRequest, Message: "forbidden"})
	case errors.Is(err, errFixtureDirectory):
		logger.Warn().Str(log.FieldPath, requestPath).Str(log.FieldReason, "directory_listing").Msg("fixture request denied")
		metrics.IncFixtureRequest("directory_listing")
		writeError(w, http.StatusForbidden, Error{Code: codeBadRequest, Message: "forbidden"})
	default:
		logger.Error().Err(err).Str(log.FieldPath, resolvedPath).Msg("could not resolve fixture path")
		metrics.IncFixtureRequest("internal_error")
		writeError(w, http.StatusInternalServerError, Error{Code: codeInternal, Message: "internal error"})
	}
}

func serveFixture(w http.ResponseWriter, r *http.Request, realPath, requestPath string, logger zerolog.Logger) error {
	f, err := os.Open(realPath) // #nosec G304 -- realPath is containment-checked above
	if err != nil {
		return fmt.Errorf("open resolved path: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Str(log.FieldPath, realPath).Msg("failed to close fixture")
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat opened file: %w", err)
	}

	etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		metrics.IncFixtureRequest("cache_hit")
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	setFixtureContentType(w, info.Name())

	logger.Debug().Str(log.FieldPath, requestPath).Msg("serving fixture")
	metrics.IncFixtureRequest("allowed")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}

// setFixtureContentType pins manifest types explicitly; everything else is
// left to ServeContent's extension sniffing.
func setFixtureContentType(w http.ResponseWriter, filename string) {
	lowerName := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lowerName, ".mpd"):
		w.Header().Set("Content-Type", "application/dash+xml; charset=utf-8")
	case strings.HasSuffix(lowerName, ".m3u8"), strings.HasSuffix(lowerName, ".m3u"):
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	case strings.HasSuffix(lowerName, ".xml"):
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	}
}

// isPathTraversal performs robust checks against path traversal attempts.
// It decodes the input multiple times to catch double-encoding, applies
// Unicode normalization, and searches for dangerous sequences including
// NULs.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d2, err2 := url.QueryUnescape(decoded); err2 == nil {
			decoded = d2
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	dangerSubstrings := []string{
		"..",        // parent traversal
		"..\\",      // windows-style backslash
		"%00",       // encoded NUL
		"\x00",      // literal NUL
		"%c0%ae",    // overlong UTF-8 for '.'
		"%e0%80%ae", // another overlong variant
	}
	for _, pat := range dangerSubstrings {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}

	normalized := strings.ToLower(norm.NFC.String(decoded))
	return strings.Contains(normalized, "..")
}
