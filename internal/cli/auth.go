package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Manage your account on the task server used by the remote backend.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to the task server",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout from the task server",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account on the task server",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who you are logged in as",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var authUsername string

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Username (prompted if empty)")
	registerCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Username (prompted if empty)")
}

// prompter reads answers from the command's input
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, reader: bufio.NewReader(in), out: cmd.OutOrStdout()}
}

func (p *prompter) line(label string) string {
	fmt.Fprint(p.out, label)
	s, _ := p.reader.ReadString('\n')
	return strings.TrimSpace(s)
}

// password reads without echo when input is a terminal
func (p *prompter) password(label string) string {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, _ := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		return string(b)
	}
	return p.line(label)
}

func runLogin(cmd *cobra.Command, args []string) error {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return err
	}

	p := newPrompter(cmd)
	username := authUsername
	if username == "" {
		username = p.line("Username: ")
	}
	password := p.password("Password: ")

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔄 Logging in...")
	if err := client.Login(cmd.Context(), username, password); err != nil {
		return err
	}

	fmt.Fprintln(out, "✅ Logged in successfully!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !client.IsLoggedIn() {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	fmt.Fprintln(out, "🔄 Logging out...")
	if err := client.Logout(cmd.Context()); err != nil {
		// The local session is gone either way
		fmt.Fprintf(out, "⚠️  Server did not confirm logout: %v\n", err)
	}

	fmt.Fprintln(out, "✅ Logged out successfully.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return err
	}

	p := newPrompter(cmd)
	username := authUsername
	if username == "" {
		username = p.line("Username: ")
	}
	email := p.line("Email: ")
	password := p.password("Password: ")
	confirm := p.password("Confirm Password: ")

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔄 Creating account...")
	if err := client.Register(cmd.Context(), username, email, password); err != nil {
		return err
	}

	fmt.Fprintln(out, "✅ Account created and logged in!")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newRemoteClient(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sess := client.Session()
	fmt.Fprintf(out, "Server:  %s\n", sess.ServerURL)
	fmt.Fprintf(out, "Backend: %s\n", cfg.Backend)
	if !client.IsLoggedIn() {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	user, err := client.Me(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "⚠️  Saved session for %s was not accepted: %v\n", sess.Username, err)
		return nil
	}
	fmt.Fprintf(out, "Logged in as %s <%s> (%s)\n", user.Username, user.Email, user.ID)
	return nil
}
