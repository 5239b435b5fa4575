package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/comment-radar/internal/platform/api"
	"github.com/example/comment-radar/services/predictor/internal/script"
	"github.com/example/comment-radar/services/predictor/internal/sink"
)

// MaxBodyBytes bounds a /predict request body.
const MaxBodyBytes = 10 << 20

const version = "1.0"

// Runner runs the prediction script for one comment.
type Runner interface {
	Run(ctx context.Context, text string) (script.Output, error)
}

// Deps are the collaborators of the predict handler.
type Deps struct {
	Script      Runner
	Sink        sink.Sink
	Log         *zap.Logger
	SinkTimeout time.Duration
}

type predictRequest struct {
	Comment  json.RawMessage `json:"comment"`
	VideoID  json.RawMessage `json:"videoId"`
	Username json.RawMessage `json:"username"`
}

// predictResponse is the flat body the extension and scanner expect.
type predictResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
	Message    string  `json:"message,omitempty"`
	Details    *string `json:"details,omitempty"`
	Raw        *string `json:"raw,omitempty"`
}

// Status handles GET /status
func Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "active",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"version":   version,
		})
	}
}

// Predict handles POST /predict
func Predict(d Deps) http.HandlerFunc {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.SinkTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				failure(w, http.StatusRequestEntityTooLarge, predictResponse{Error: "Payload too large"})
				return
			}
			failure(w, http.StatusBadRequest, predictResponse{Error: "Invalid JSON format", Message: err.Error()})
			return
		}
		comment := rawString(req.Comment)
		if comment == "" {
			failure(w, http.StatusBadRequest, predictResponse{Error: "Comment is required"})
			return
		}
		videoID, username := rawString(req.VideoID), rawString(req.Username)
		log.Info("predict request", zap.String("username", username), zap.Int("length", len(comment)))

		out, err := d.Script.Run(r.Context(), comment)
		if err != nil {
			log.Error("prediction script failed", zap.Error(err), zap.String("stderr", out.Stderr))
			details := out.Stderr
			failure(w, http.StatusInternalServerError, predictResponse{Error: "Python execution failed", Details: &details})
			return
		}

		pred, err := script.Parse(out.Stdout)
		if err != nil {
			log.Warn("invalid prediction output", zap.Error(err), zap.String("stdout", out.Stdout))
			raw := truncate(out.Stdout, 200)
			api.WriteJSON(w, http.StatusOK, predictResponse{Label: "SAFE", Error: "Invalid Python output", Raw: &raw})
			return
		}
		if !pred.ConfidenceValid {
			log.Warn("invalid confidence value", zap.String("label", pred.Label))
			api.WriteJSON(w, http.StatusOK, predictResponse{Label: pred.Label})
			return
		}

		log.Info("prediction", zap.String("label", pred.Label), zap.Float64("confidence", pred.Confidence))
		if d.Sink != nil {
			entry := sink.Entry{VideoID: videoID, Username: username, Comment: comment, Label: pred.Label, Confidence: pred.Confidence}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				if err := d.Sink.Insert(ctx, entry); err != nil {
					log.Error("comment log insert failed", zap.Error(err))
				}
			}()
		}
		api.WriteJSON(w, http.StatusOK, predictResponse{Label: pred.Label, Confidence: pred.Confidence})
	}
}

func failure(w http.ResponseWriter, status int, body predictResponse) {
	body.Label = "ERROR"
	body.Confidence = 0
	api.WriteJSON(w, status, body)
}

// rawString returns the value when raw is a JSON string, otherwise "".
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RateLimited writes the 429 body in the predict wire shape.
func RateLimited(w http.ResponseWriter, _ *http.Request) {
	failure(w, http.StatusTooManyRequests, predictResponse{Error: "Too many requests"})
}
