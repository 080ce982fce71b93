package httpx

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/service/auth"
	"github.com/kycdesk/kycdesk/internal/storage"
)

const (
	maxJSONBody       = 1 << 20
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
	documentField     = "document"
	msgInvalidJSON    = "Invalid JSON body"
	msgInvalidUpload  = "Invalid multipart body"
	msgDocumentTooBig = "Document exceeds the upload size limit"
	msgRegistered     = "User registered successfully"
	msgSubmitted      = "KYC submission received"
	msgResubmitted    = "KYC resubmission received"
	msgStatusUpdated  = "KYC status updated"
)

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) error {
	body := http.MaxBytesReader(w, req.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return domain.NewValidation(msgInvalidJSON)
	}
	return nil
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload registerRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	if fields := payload.Validate(); len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}
	if _, err := r.auth.Register(req.Context(), auth.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	}); err != nil {
		r.writeError(w, req, err)
		return
	}
	writeMessage(w, http.StatusCreated, msgRegistered)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload loginRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	if fields := payload.Validate(); len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}
	token, user, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: string(user.Role)})
}

func (r *Router) handleSubmitKYC(w http.ResponseWriter, req *http.Request) {
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for kyc submission", "path", req.URL.Path)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	upload, cleanup, err := r.readDocument(w, req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	defer cleanup()

	result, err := r.kyc.Submit(req.Context(), identity.UserID, upload)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.recordSubmission(result.Resubmitted)
	msg := msgSubmitted
	if result.Resubmitted {
		msg = msgResubmitted
	}
	writeJSON(w, http.StatusCreated, submissionMessageResponse{
		Message:    msg,
		Submission: toSubmissionResponse(result.Submission),
	})
}

// readDocument extracts the optional document part. A request without the part,
// or without a multipart body at all, yields a nil upload.
func (r *Router) readDocument(w http.ResponseWriter, req *http.Request) (*storage.Upload, func(), error) {
	noop := func() {}
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.UploadMaxBytes+multipartOverhead)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			return nil, noop, nil
		case errors.As(err, &tooBig):
			return nil, noop, domain.NewValidation(msgDocumentTooBig)
		default:
			return nil, noop, domain.NewValidation(msgInvalidUpload)
		}
	}
	cleanup := func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}
	file, header, err := req.FormFile(documentField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, domain.NewValidation(msgInvalidUpload)
	}
	if header.Size > r.opts.UploadMaxBytes {
		file.Close()
		return nil, cleanup, domain.NewValidation(msgDocumentTooBig)
	}
	return uploadFrom(file, header), func() {
		file.Close()
		cleanup()
	}, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *storage.Upload {
	return &storage.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

func (r *Router) handleKYCStatus(w http.ResponseWriter, req *http.Request) {
	identity, ok := identityFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for kyc status", "path", req.URL.Path)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
		return
	}
	sub, err := r.kyc.Status(req.Context(), identity.UserID)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionResponse(*sub))
}

func (r *Router) handleListKYC(w http.ResponseWriter, req *http.Request) {
	subs, err := r.kyc.List(req.Context())
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(subs))
}

func (r *Router) handleDecideKYC(w http.ResponseWriter, req *http.Request) {
	var payload decideRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	sub, err := r.kyc.Decide(req.Context(), chi.URLParam(req, "id"), payload.Status)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.recordDecision(string(sub.Status))
	writeJSON(w, http.StatusOK, submissionMessageResponse{
		Message:    msgStatusUpdated,
		Submission: toSubmissionResponse(*sub),
	})
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	stats, err := r.dashboard.Stats(req.Context())
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(stats))
}
