package web

import (
	"encoding/json"
	"net/http"
)

type WebError struct {
	T     string `json:"t"`
	Error string `json:"error"`
}

func renderJson(req *http.Request, w http.ResponseWriter, code int, data interface{}) error {
	var body []byte
	var err error
	if isVerbose(req) {
		body, err = json.MarshalIndent(data, "", "  ")
	} else {
		body, err = json.Marshal(data)
	}
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(append(body, '\n'))

	return err
}

func errorResponse(error WebError, code int, req *http.Request, w http.ResponseWriter) {
	_ = renderJson(req, w, code, error)
}
