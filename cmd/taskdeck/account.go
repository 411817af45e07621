package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fentz26/taskdeck/internal/client"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/state"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account with a username and password",
	RunE:  runSignup,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a username and password",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored access token",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE:  runWhoami,
}

var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Sign in with a phone number and one-time code",
}

var otpSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a one-time code to a phone number",
	RunE:  runOTPSend,
}

var otpVerifyCmd = &cobra.Command{
	Use:   "verify [code]",
	Short: "Sign in with the one-time code",
	Args:  cobra.ExactArgs(1),
	RunE:  runOTPVerify,
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Recover a forgotten password",
}

var passwordForgotCmd = &cobra.Command{
	Use:   "forgot",
	Short: "Email a password reset link",
	RunE:  runPasswordForgot,
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set a new password with a reset token",
	RunE:  runPasswordReset,
}

var (
	firstName   string
	lastName    string
	username    string
	password    string
	countryCode string
	phoneNumber string
	accountID   string
	resetToken  string
)

func init() {
	otpCmd.AddCommand(otpSendCmd, otpVerifyCmd)
	passwordCmd.AddCommand(passwordForgotCmd, passwordResetCmd)

	signupCmd.Flags().StringVar(&firstName, "first-name", "", "First name (required)")
	signupCmd.Flags().StringVar(&lastName, "last-name", "", "Last name (required)")
	signupCmd.Flags().StringVar(&username, "username", "", "Email address used to sign in (required)")
	signupCmd.Flags().StringVar(&password, "password", "", "Password; prompted for when omitted")
	signupCmd.MarkFlagRequired("first-name")
	signupCmd.MarkFlagRequired("last-name")
	signupCmd.MarkFlagRequired("username")

	loginCmd.Flags().StringVar(&username, "username", "", "Username (required)")
	loginCmd.Flags().StringVar(&password, "password", "", "Password; prompted for when omitted")
	loginCmd.MarkFlagRequired("username")

	for _, c := range []*cobra.Command{otpSendCmd, otpVerifyCmd} {
		c.Flags().StringVar(&countryCode, "country-code", "", "Country calling code, e.g. +1 (required)")
		c.Flags().StringVar(&phoneNumber, "phone", "", "Phone number without the country code (required)")
		c.MarkFlagRequired("country-code")
		c.MarkFlagRequired("phone")
	}

	passwordForgotCmd.Flags().StringVar(&username, "username", "", "Username (required)")
	passwordForgotCmd.MarkFlagRequired("username")

	passwordResetCmd.Flags().StringVar(&accountID, "account-id", "", "Account id from the reset link (required)")
	passwordResetCmd.Flags().StringVar(&resetToken, "token", "", "Token from the reset link (required)")
	passwordResetCmd.Flags().StringVar(&password, "password", "", "New password; prompted for when omitted")
	passwordResetCmd.MarkFlagRequired("account-id")
	passwordResetCmd.MarkFlagRequired("token")
}

func runSignup(cmd *cobra.Command, args []string) error {
	pw, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		acc, err := s.app.Auth.Signup(ctx, client.SignupRequest{
			FirstName: firstName,
			LastName:  lastName,
			Username:  username,
			Password:  pw,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created account %s for %s. Run 'taskdeck login' to sign in.\n", acc.ID, acc.Username)
		return nil
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	pw, err := readPassword(cmd, "Password: ")
	if err != nil {
		return err
	}
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		if _, err := s.app.Auth.Login(ctx, username, pw); err != nil {
			return err
		}
		return greet(ctx, cmd.OutOrStdout(), s)
	})
}

func runOTPSend(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		phone := models.PhoneNumber{CountryCode: countryCode, Number: phoneNumber}
		if _, err := s.app.Auth.SendOTP(ctx, phone); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent a one-time code to %s. Run 'taskdeck otp verify <code>' to sign in.\n", models.DisplayPhoneNumber(phone))
		return nil
	})
}

func runOTPVerify(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		phone := models.PhoneNumber{CountryCode: countryCode, Number: phoneNumber}
		if _, err := s.app.Auth.VerifyOTP(ctx, phone, args[0]); err != nil {
			return err
		}
		return greet(ctx, cmd.OutOrStdout(), s)
	})
}

// greet fetches the account after a successful sign in, which also tags the
// logger with the user.
func greet(ctx context.Context, out io.Writer, s *session) error {
	acc, err := s.app.Account.GetAccountDetails(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s\n", describeAccount(*acc))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		if err := s.app.Auth.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withAccount(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		acc := s.app.Account.AccountDetails()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:       %s\n", acc.ID)
		fmt.Fprintf(out, "Name:     %s\n", models.DisplayName(acc))
		if acc.Username != "" {
			fmt.Fprintf(out, "Username: %s\n", acc.Username)
		}
		if acc.PhoneNumber != nil {
			fmt.Fprintf(out, "Phone:    %s\n", models.DisplayPhoneNumber(*acc.PhoneNumber))
		}
		return nil
	})
}

func runPasswordForgot(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		if err := s.app.ResetPassword.SendForgotPasswordEmail(ctx, username); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset link is on its way.\n", username)
		return nil
	})
}

func runPasswordReset(cmd *cobra.Command, args []string) error {
	pw, err := readPassword(cmd, "New password: ")
	if err != nil {
		return err
	}
	return withSession(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, s *session) error {
		err := s.app.ResetPassword.ResetPassword(ctx, state.ResetPasswordParams{
			AccountID:   accountID,
			NewPassword: pw,
			Token:       resetToken,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Run 'taskdeck login' to sign in.")
		return nil
	})
}

func describeAccount(acc models.Account) string {
	name := models.DisplayName(acc)
	switch {
	case acc.Username != "":
		return fmt.Sprintf("%s (%s)", name, acc.Username)
	case acc.PhoneNumber != nil:
		return strings.TrimSpace(name + " " + models.DisplayPhoneNumber(*acc.PhoneNumber))
	case name != "":
		return name
	}
	return acc.ID
}

// readPassword returns --password when set. Otherwise it prompts without echo
// on a terminal, or reads one line from a pipe.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if password != "" {
		return password, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", usageError{errors.New("a password is required")}
	}
	return line, nil
}
