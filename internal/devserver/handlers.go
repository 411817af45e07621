package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPage = 1
	defaultSize = 10
)

type ctxKey int

const accountIDKey ctxKey = iota

// authenticate checks the bearer token and that it belongs to the account
// named in the path.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeError(w, r, newAPIError(http.StatusUnauthorized, CodeAuthHeaderNotFound, "Authorization header is missing."))
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			s.writeError(w, r, newAPIError(http.StatusUnauthorized, CodeInvalidAuthHeader, "Invalid authorization header."))
			return
		}

		accountID, err := s.tokens.verify(parts[1])
		if err != nil {
			s.writeError(w, r, authError(err))
			return
		}
		if accountID != chi.URLParam(r, "accountID") {
			s.writeError(w, r, newAPIError(http.StatusUnauthorized, CodeUnauthorizedAccess, "Unauthorized access."))
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticatedAccount(r *http.Request) string {
	id, _ := r.Context().Value(accountIDKey).(string)
	return id
}

func decodeBody(r *http.Request, v any, badRequest func(string) *apiError) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("Request body is required")
	}
	return nil
}

// validationMessage renders the first failed field as a sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "Invalid " + strings.ToLower(fe.Field()) + ": failed " + fe.Tag() + " check"
	}
	return err.Error()
}

// --- Account Handlers ---

type createAccountRequest struct {
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Username    string              `json:"username"`
	Password    string              `json:"password"`
	PhoneNumber *models.PhoneNumber `json:"phone_number"`
}

type usernameSignup struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Username  string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(r, &req, accountBadRequest); err != nil {
		s.writeError(w, r, err)
		return
	}

	switch {
	case req.PhoneNumber != nil:
		if err := s.validate.Struct(req.PhoneNumber); err != nil {
			s.writeError(w, r, accountBadRequest(validationMessage(err)))
			return
		}
		acc, err := s.store.GetOrCreateAccountByPhone(*req.PhoneNumber)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("otp sent", "account_id", acc.ID, "phone", models.DisplayPhoneNumber(*req.PhoneNumber), "otp_code", s.cfg.OTPCode)
		writeJSON(w, http.StatusCreated, acc)

	case req.Username != "" && req.Password != "":
		signup := usernameSignup{FirstName: req.FirstName, LastName: req.LastName, Username: req.Username, Password: req.Password}
		if err := s.validate.Struct(signup); err != nil {
			s.writeError(w, r, accountBadRequest(validationMessage(err)))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		acc, err := s.store.CreateAccount(req.FirstName, req.LastName, req.Username, string(hash))
		if errors.Is(err, store.ErrUsernameTaken) {
			s.writeError(w, r, newAPIError(http.StatusConflict, CodeAccountUsernameExists,
				"An account with the username %s already exists. Try logging in or use a different username.", req.Username))
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, acc)

	default:
		s.writeError(w, r, accountBadRequest("Request must include either a phone_number or a username and password."))
	}
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id := authenticatedAccount(r)
	acc, err := s.store.GetAccount(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if acc == nil {
		s.writeError(w, r, accountNotFoundByID(id))
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func accountNotFoundByID(id string) *apiError {
	return newAPIError(http.StatusNotFound, CodeAccountNotFound,
		"We could not find an account with id: %s. Please verify and try again.", id)
}

func accountNotFoundByUsername(username string) *apiError {
	return newAPIError(http.StatusNotFound, CodeAccountNotFound,
		"We could not find an account associated with username: %s. Please verify it or you can create a new account.", username)
}

// --- Access Token Handlers ---

type accessTokenRequest struct {
	Username    string              `json:"username"`
	Password    string              `json:"password"`
	PhoneNumber *models.PhoneNumber `json:"phone_number"`
	OTPCode     string              `json:"otp_code"`
}

func (s *Server) createAccessToken(w http.ResponseWriter, r *http.Request) {
	var req accessTokenRequest
	if err := decodeBody(r, &req, accountBadRequest); err != nil {
		s.writeError(w, r, err)
		return
	}

	var acc *models.Account
	switch {
	case req.PhoneNumber != nil:
		found, err := s.store.GetAccountByPhone(*req.PhoneNumber)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if found == nil {
			s.writeError(w, r, newAPIError(http.StatusNotFound, CodeAccountNotFound,
				"We could not find an account phone number: %s. Please verify it or you can create a new account.",
				models.DisplayPhoneNumber(*req.PhoneNumber)))
			return
		}
		if req.OTPCode != s.cfg.OTPCode {
			s.writeError(w, r, newAPIError(http.StatusBadRequest, CodeIncorrectOTP, "Please provide the correct OTP to login."))
			return
		}
		acc = found

	case req.Username != "":
		found, hash, err := s.store.GetCredentials(req.Username)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if found == nil {
			s.writeError(w, r, accountNotFoundByUsername(req.Username))
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			s.writeError(w, r, newAPIError(http.StatusUnauthorized, CodeInvalidCredentials,
				"Incorrect password. Please try again or Reset your password if you've forgotten it."))
			return
		}
		acc = found

	default:
		s.writeError(w, r, accountBadRequest("Request must include either a phone_number and otp_code or a username and password."))
		return
	}

	token, expires, err := s.tokens.issue(acc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.AccessToken{AccountID: acc.ID, Token: token, ExpiresAt: models.NewTimestamp(expires)})
}

// --- Password Reset Handlers ---

type passwordResetTokenRequest struct {
	Username string `json:"username" validate:"required,email"`
}

type passwordResetTokenResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) createPasswordResetToken(w http.ResponseWriter, r *http.Request) {
	var req passwordResetTokenRequest
	if err := decodeBody(r, &req, accountBadRequest); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, accountBadRequest(validationMessage(err)))
		return
	}

	acc, _, err := s.store.GetCredentials(req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if acc == nil {
		s.writeError(w, r, accountNotFoundByUsername(req.Username))
		return
	}

	token := uuid.New().String()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cfg.BcryptCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stored, err := s.store.CreateResetToken(acc.ID, string(hash), s.cfg.ResetTokenLifetime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mailer.SendPasswordReset(r.Context(), *acc, token); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, passwordResetTokenResponse{
		ID:        stored.ID,
		AccountID: stored.AccountID,
		ExpiresAt: stored.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
	Token       string `json:"token" validate:"required"`
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req resetPasswordRequest
	if err := decodeBody(r, &req, accountBadRequest); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, accountBadRequest(validationMessage(err)))
		return
	}

	acc, err := s.store.GetAccount(accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if acc == nil {
		s.writeError(w, r, accountNotFoundByID(accountID))
		return
	}

	tok, err := s.store.LatestResetToken(accountID)
	if errors.Is(err, store.ErrNoResetToken) {
		s.writeError(w, r, newAPIError(http.StatusNotFound, CodeResetTokenNotFound, "System is unable to find a token with this account"))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.tokens.now().After(tok.ExpiresAt) {
		s.writeError(w, r, accountBadRequest("Password reset link is expired for accountId "+accountID+". Please retry with new link"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(tok.TokenHash), []byte(req.Token)) != nil {
		s.writeError(w, r, accountBadRequest("Password reset link is invalid for accountId "+accountID+". Please retry with new link."))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cfg.BcryptCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.store.ResetPasswordTx(tok.ID, accountID, string(hash))
	if errors.Is(err, store.ErrNoResetToken) {
		s.writeError(w, r, accountBadRequest("Password reset is already used for accountId "+accountID+". Please retry with new link"))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// --- Task Handlers ---

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (req *taskRequest) check() error {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" {
		return taskBadRequest("Title is required")
	}
	if req.Description == "" {
		return taskBadRequest("Description is required")
	}
	return nil
}

func pageParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, taskBadRequest(strings.ToUpper(name[:1]) + name[1:] + " must be greater than 0")
	}
	return n, nil
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r, "page", defaultPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	size, err := pageParam(r, "size", defaultSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tasks, total, err := s.store.ListTasks(authenticatedAccount(r), page, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.TaskPage{
		Items:            tasks,
		PaginationParams: models.PaginationParams{Page: page, Size: size, Offset: (page - 1) * size},
		TotalCount:       total,
		TotalPages:       (total + size - 1) / size,
	})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req, taskBadRequest); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.store.CreateTask(authenticatedAccount(r), req.Title, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.store.GetTask(authenticatedAccount(r), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if task == nil {
		s.writeError(w, r, taskNotFound(taskID))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req taskRequest
	if err := decodeBody(r, &req, taskBadRequest); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		s.writeError(w, r, err)
		return
	}

	task, err := s.store.UpdateTask(authenticatedAccount(r), taskID, req.Title, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if task == nil {
		s.writeError(w, r, taskNotFound(taskID))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	ok, err := s.store.DeleteTask(authenticatedAccount(r), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, taskNotFound(taskID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
