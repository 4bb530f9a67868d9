package web

import (
    "encoding/json"
    "errors"
    "io"
    "mime"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/gorilla/mux"
    "github.com/local/pdfquiz/internal/history"
    "github.com/local/pdfquiz/internal/orchestrator"
    "github.com/local/pdfquiz/internal/quiz"
    "github.com/local/pdfquiz/internal/source"
    "github.com/rs/zerolog/log"
)

type createReq struct {
    FileRef      string `json:"file_ref"`
    Difficulty   string `json:"difficulty"`
    NumQuestions int    `json:"num_questions"`
}

type createResp struct {
    JobID string `json:"job_id"`
}

// handleCreate accepts a multipart upload (file, difficulty, num_questions) or
// a JSON body naming a file_ref, and queues a quiz job.
func (w *Web) handleCreate(wr http.ResponseWriter, r *http.Request) {
    // multipart framing adds a little on top of the file itself
    r.Body = http.MaxBytesReader(wr, r.Body, w.maxUpload+1<<20)

    var in orchestrator.Input
    ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
    switch ct {
    case "multipart/form-data":
        if err := r.ParseMultipartForm(32 << 20); err != nil {
            if tooLarge(err) {
                writeJSON(wr, http.StatusRequestEntityTooLarge, errorBody{Error: "File is too large", Kind: string(quiz.KindValidation)})
                return
            }
            badRequest(wr, "invalid multipart form")
            return
        }
        file, hdr, err := r.FormFile("file")
        if err != nil {
            badRequest(wr, "missing file")
            return
        }
        defer file.Close()
        data, err := io.ReadAll(file)
        if err != nil {
            badRequest(wr, "could not read upload")
            return
        }
        n, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("num_questions")))
        in = orchestrator.Input{FileName: hdr.Filename, Data: data, Settings: settings(r.FormValue("difficulty"), n)}
    case "application/json":
        var req createReq
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            badRequest(wr, "invalid json")
            return
        }
        if req.FileRef == "" {
            badRequest(wr, "missing file_ref")
            return
        }
        if w.loader == nil {
            badRequest(wr, "file_ref is not supported")
            return
        }
        if err := w.loader.Allows(req.FileRef); err != nil {
            log.Warn().Str("ref", req.FileRef).Msg("file_ref rejected")
            badRequest(wr, "file_ref must be an s3:// reference")
            return
        }
        // reject bad settings before fetching anything
        s := settings(req.Difficulty, req.NumQuestions)
        if err := quiz.ValidateSettings(s); err != nil {
            writeError(wr, err)
            return
        }
        doc, err := w.loader.Load(r.Context(), req.FileRef)
        if err != nil {
            log.Warn().Err(err).Str("ref", req.FileRef).Msg("document load failed")
            writeError(wr, loadError(err))
            return
        }
        in = orchestrator.Input{FileName: doc.Name, Data: doc.Data, Settings: s}
    default:
        writeJSON(wr, http.StatusUnsupportedMediaType, errorBody{Error: "expected multipart/form-data or application/json"})
        return
    }

    if err := quiz.ValidateSettings(in.Settings); err != nil {
        writeError(wr, err)
        return
    }

    jobID, err := w.jobs.Start(r.Context(), in)
    if err != nil {
        writeError(wr, err)
        return
    }
    writeJSON(wr, http.StatusAccepted, createResp{JobID: jobID})
}

func settings(difficulty string, n int) quiz.Settings {
    // an unknown name is kept as is and rejected by ValidateSettings
    d, _ := quiz.ParseDifficulty(difficulty)
    return quiz.Settings{Difficulty: d, NumQuestions: n}
}

func tooLarge(err error) bool {
    var mbe *http.MaxBytesError
    return errors.As(err, &mbe)
}

func loadError(err error) error {
    if errors.Is(err, source.ErrTooLarge) {
        return err
    }
    return quiz.FileError([]string{"Unable to load document"}, err)
}

func (w *Web) handleJobStatus(wr http.ResponseWriter, r *http.Request) {
    st, err := w.jobs.Status(r.Context(), mux.Vars(r)["id"])
    if err != nil {
        writeError(wr, err)
        return
    }
    writeJSON(wr, http.StatusOK, st)
}

func (w *Web) handleJobCancel(wr http.ResponseWriter, r *http.Request) {
    if err := w.jobs.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
        writeError(wr, err)
        return
    }
    wr.WriteHeader(http.StatusNoContent)
}

func (w *Web) handleList(wr http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    list, err := w.quizzes.List(r.Context(), history.Query{
        Filter: history.Filter(q.Get("filter")),
        Search: q.Get("search"),
        Sort:   history.SortBy(q.Get("sort")),
    })
    if err != nil {
        writeError(wr, err)
        return
    }
    writeJSON(wr, http.StatusOK, list)
}

func (w *Web) handleStats(wr http.ResponseWriter, r *http.Request) {
    st, err := w.quizzes.Stats(r.Context())
    if err != nil {
        writeError(wr, err)
        return
    }
    writeJSON(wr, http.StatusOK, st)
}

func (w *Web) handleGet(wr http.ResponseWriter, r *http.Request) {
    e, err := w.quizzes.Get(r.Context(), mux.Vars(r)["id"])
    if err != nil {
        writeError(wr, err)
        return
    }
    writeJSON(wr, http.StatusOK, e)
}

func (w *Web) handleDelete(wr http.ResponseWriter, r *http.Request) {
    if err := w.quizzes.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
        writeError(wr, err)
        return
    }
    wr.WriteHeader(http.StatusNoContent)
}

func (w *Web) handleClear(wr http.ResponseWriter, r *http.Request) {
    if err := w.quizzes.Clear(r.Context()); err != nil {
        writeError(wr, err)
        return
    }
    wr.WriteHeader(http.StatusNoContent)
}

type startResp struct {
    history.Entry
    Deadline time.Time `json:"deadline"`
}

func (w *Web) handleStart(wr http.ResponseWriter, r *http.Request) {
    e, err := w.quizzes.Start(r.Context(), mux.Vars(r)["id"])
    if err != nil {
        writeError(wr, err)
        return
    }
    writeJSON(wr, http.StatusOK, startResp{Entry: e, Deadline: w.scorer.Deadline(*e.StartedAt)})
}

type submitReq struct {
    Answers []*int `json:"answers"`
}

// handleSubmit grades answers against the stored quiz. A quiz that was never
// started is graded without a time limit.
func (w *Web) handleSubmit(wr http.ResponseWriter, r *http.Request) {
    id := mux.Vars(r)["id"]
    var req submitReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        badRequest(wr, "invalid json")
        return
    }
    e, err := w.quizzes.Get(r.Context(), id)
    if err != nil {
        writeError(wr, err)
        return
    }

    var startedAt time.Time
    if e.StartedAt != nil {
        startedAt = *e.StartedAt
    }
    res := w.scorer.Score(e.Questions, req.Answers, startedAt, w.now())
    if _, err := w.quizzes.Complete(r.Context(), id, req.Answers, res); err != nil {
        writeError(wr, err)
        return
    }
    log.Info().Str("quiz_id", id).Int("percentage", res.Percentage).Bool("timed_out", res.TimedOut).Msg("quiz submitted")
    writeJSON(wr, http.StatusOK, res)
}

func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
    if w.health == nil {
        writeJSON(wr, http.StatusServiceUnavailable, errorBody{Error: "status checks not configured"})
        return
    }
    s := w.health.Summary(r.Context())
    code := http.StatusOK
    if !s.OK() {
        code = http.StatusServiceUnavailable
    }
    writeJSON(wr, code, s)
}
