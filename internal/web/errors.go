package web

import (
    "errors"
    "math"
    "net/http"
    "strconv"

    "github.com/local/pdfquiz/internal/history"
    "github.com/local/pdfquiz/internal/orchestrator"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/source"
    "github.com/rs/zerolog/log"
)

type errorBody struct {
    Error             string   `json:"error"`
    Kind              string   `json:"kind,omitempty"`
    RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
    Details           []string `json:"details,omitempty"`
}

// statusForKind maps an error kind onto an HTTP status.
func statusForKind(k quiz.Kind) int {
    switch k {
    case quiz.KindValidation:
        return http.StatusBadRequest
    case quiz.KindRateLimitExceeded, quiz.KindProviderRateLimited:
        return http.StatusTooManyRequests
    case quiz.KindTimeout:
        return http.StatusGatewayTimeout
    case quiz.KindPageProcessing:
        return http.StatusUnprocessableEntity
    case quiz.KindProviderUnavailable, quiz.KindInvalidCredential,
        quiz.KindMalformedResponse, quiz.KindInvalidQuizContent:
        return http.StatusBadGateway
    default:
        return http.StatusInternalServerError
    }
}

func writeError(wr http.ResponseWriter, err error) {
    var qe *quiz.Error
    switch {
    case errors.As(err, &qe):
        status := statusForKind(qe.Kind)
        body := errorBody{Error: qe.Message, Kind: string(qe.Kind), Details: qe.Details}
        if qe.RetryAfter > 0 {
            body.RetryAfterSeconds = int(math.Ceil(qe.RetryAfter.Seconds()))
            wr.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
        }
        writeJSON(wr, status, body)
    case errors.Is(err, history.ErrNotFound):
        writeJSON(wr, http.StatusNotFound, errorBody{Error: "Quiz not found"})
    case errors.Is(err, orchestrator.ErrJobNotFound):
        writeJSON(wr, http.StatusNotFound, errorBody{Error: "Job not found"})
    case errors.Is(err, source.ErrTooLarge):
        writeJSON(wr, http.StatusRequestEntityTooLarge, errorBody{Error: "File is too large", Kind: string(quiz.KindValidation)})
    default:
        log.Error().Err(err).Msg("request failed")
        writeJSON(wr, http.StatusInternalServerError, errorBody{Error: "Internal server error", Kind: string(quiz.KindUnknown)})
    }
}

func badRequest(wr http.ResponseWriter, msg string) {
    writeJSON(wr, http.StatusBadRequest, errorBody{Error: msg, Kind: string(quiz.KindValidation)})
}
