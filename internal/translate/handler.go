package translate

import (
	"encoding/json"
	"net/http"
)

const maxRequestBytes = 64 << 10

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Translated string `json:"translated"`
}

// Handler serves POST /translate.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "bad_request", "message": "invalid JSON body"})
			return
		}

		out := s.Translate(r.Context(), Request{
			Text:       req.Text,
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
		})
		writeJSON(w, http.StatusOK, translateResponse{Translated: out})
	})
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /translate", s.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
