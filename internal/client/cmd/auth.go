package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gamevault/internal/shared/models"
)

type authClient struct {
	serverURL *string
	email     string
	name      string
}

func newAuthCmd(serverURL *string) *cobra.Command {
	a := &authClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "auth", Short: "Authentication commands"}

	register := &cobra.Command{Use: "register", Short: "Register new account", Args: cobra.NoArgs, RunE: a.register}
	register.Flags().StringVar(&a.email, "email", "", "Account email (prompted when empty)")
	register.Flags().StringVar(&a.name, "name", "", "Display name")

	login := &cobra.Command{Use: "login", Short: "Login and store token", Args: cobra.NoArgs, RunE: a.login}
	login.Flags().StringVar(&a.email, "email", "", "Account email (prompted when empty)")

	cmd.AddCommand(register, login)
	cmd.AddCommand(&cobra.Command{Use: "logout", Short: "Forget the stored token", Args: cobra.NoArgs, RunE: a.logout})
	return cmd
}

// credentials prompts for whatever the flags did not supply.
func (a *authClient) credentials(cmd *cobra.Command) (string, string, error) {
	reader := bufio.NewReader(cmd.InOrStdin())
	email := strings.TrimSpace(a.email)
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", "", err
		}
		email = strings.TrimSpace(line)
	}
	password, err := promptPassword(cmd, reader, "Password: ")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (a *authClient) register(cmd *cobra.Command, args []string) error {
	email, password, err := a.credentials(cmd)
	if err != nil {
		return err
	}
	body := map[string]string{"email": email, "password": password, "name": a.name}
	var acc models.Account
	if err := newAPIClient(*a.serverURL).do(cmd.Context(), "POST", "/api/auth/register", body, &acc); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Registered "+acc.Email))
	return nil
}

func (a *authClient) login(cmd *cobra.Command, args []string) error {
	email, password, err := a.credentials(cmd)
	if err != nil {
		return err
	}
	body := map[string]string{"email": email, "password": password}
	var tok models.TokenResponse
	if err := newAPIClient(*a.serverURL).do(cmd.Context(), "POST", "/api/auth/login", body, &tok); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveToken(tok.Token); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Logged in"))
	return nil
}

func (a *authClient) logout(cmd *cobra.Command, args []string) error {
	if err := removeToken(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

// promptPassword hides input when stdin is a terminal and otherwise reads
// one line from reader.
func promptPassword(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(pass), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
