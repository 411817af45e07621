package state

import (
	"context"
	"fmt"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/storage"
)

type credentials struct {
	username, password string
}

type otpArgs struct {
	phone models.PhoneNumber
	code  string
}

// Auth signs users up and in, and owns the persisted access token.
type Auth struct {
	tokens    storage.TokenStore
	observers observers

	login     *async.Operation[credentials, models.AccessToken]
	signup    *async.Operation[client.SignupRequest, models.Account]
	sendOTP   *async.Operation[models.PhoneNumber, models.Account]
	verifyOTP *async.Operation[otpArgs, models.AccessToken]
}

func newAuth(d Deps) *Auth {
	a := &Auth{tokens: d.Tokens}
	policy := async.WithPolicy(d.Policy)

	a.login = async.New(func(ctx context.Context, c credentials) (*models.AccessToken, error) {
		tok, err := d.API.Login(ctx, c.username, c.password)
		if err != nil {
			return nil, err
		}
		return a.persist(tok)
	}, policy)

	a.signup = async.New(func(ctx context.Context, req client.SignupRequest) (*models.Account, error) {
		return d.API.Signup(ctx, req)
	}, policy)

	a.sendOTP = async.New(func(ctx context.Context, phone models.PhoneNumber) (*models.Account, error) {
		return d.API.SendOTP(ctx, phone)
	}, policy)

	a.verifyOTP = async.New(func(ctx context.Context, args otpArgs) (*models.AccessToken, error) {
		tok, err := d.API.VerifyOTP(ctx, args.phone, args.code)
		if err != nil {
			return nil, err
		}
		return a.persist(tok)
	}, policy)

	a.login.OnChange(a.observers.notify)
	a.signup.OnChange(a.observers.notify)
	a.sendOTP.OnChange(a.observers.notify)
	a.verifyOTP.OnChange(a.observers.notify)
	return a
}

func (a *Auth) persist(tok *models.AccessToken) (*models.AccessToken, error) {
	if err := a.tokens.Set(*tok); err != nil {
		return nil, fmt.Errorf("persist access token: %w", err)
	}
	return tok, nil
}

// Login exchanges a username and password for an access token and persists
// it before returning.
func (a *Auth) Login(ctx context.Context, username, password string) (*models.AccessToken, error) {
	return a.login.Invoke(ctx, credentials{username: username, password: password})
}

// Signup creates a username/password account.
func (a *Auth) Signup(ctx context.Context, req client.SignupRequest) (*models.Account, error) {
	return a.signup.Invoke(ctx, req)
}

// SendOTP asks the server to text a one-time code to phone.
func (a *Auth) SendOTP(ctx context.Context, phone models.PhoneNumber) (*models.Account, error) {
	return a.sendOTP.Invoke(ctx, phone)
}

// VerifyOTP exchanges a one-time code for an access token and persists it
// before returning.
func (a *Auth) VerifyOTP(ctx context.Context, phone models.PhoneNumber, otp string) (*models.AccessToken, error) {
	return a.verifyOTP.Invoke(ctx, otpArgs{phone: phone, code: otp})
}

// Logout forgets the persisted access token. The server is not contacted.
func (a *Auth) Logout() error {
	if err := a.tokens.Remove(); err != nil {
		return fmt.Errorf("remove access token: %w", err)
	}
	a.observers.notify()
	return nil
}

// IsUserAuthenticated reports whether an access token is persisted. Expiry is
// not checked; a stale token is only discovered by the next API call.
func (a *Auth) IsUserAuthenticated() bool {
	tok, err := a.tokens.Get()
	return err == nil && tok != nil
}

// LoginState returns the login operation's state.
func (a *Auth) LoginState() async.State[models.AccessToken] { return a.login.State() }

// SignupState returns the signup operation's state.
func (a *Auth) SignupState() async.State[models.Account] { return a.signup.State() }

// SendOTPState returns the send-OTP operation's state.
func (a *Auth) SendOTPState() async.State[models.Account] { return a.sendOTP.State() }

// VerifyOTPState returns the verify-OTP operation's state.
func (a *Auth) VerifyOTPState() async.State[models.AccessToken] { return a.verifyOTP.State() }

// OnChange registers fn for every auth state transition.
func (a *Auth) OnChange(fn func()) { a.observers.add(fn) }
