// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/holomush/authcore/internal/auth"
)

// maxBodyBytes caps request bodies. Every payload is a handful of short strings.
const maxBodyBytes = 64 << 10

// MsgInvalidBody is returned when a request body is not the expected JSON object.
const MsgInvalidBody = "Invalid request body"

type messageBody struct {
	Message string `json:"message"`
}

// statusOf maps a service error kind to its HTTP status.
func statusOf(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindInvalidCredentials, auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeError writes the public form of a service error. Internal causes are
// already logged by the service and never reach the body.
func writeError(w http.ResponseWriter, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	writeMessage(w, statusOf(kind), auth.PublicMessage(err))
}

// decode reads a single JSON object from the request body into dst. An empty
// body leaves dst at its zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, MsgInvalidBody)
		return false
	}
	if dec.More() {
		writeMessage(w, http.StatusBadRequest, MsgInvalidBody)
		return false
	}
	return true
}
