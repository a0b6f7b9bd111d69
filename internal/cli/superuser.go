package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"pressroom/internal/validation"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create an account holding every permission",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if username == "" {
			if username, err = prompt(in, out, "Username: "); err != nil {
				return err
			}
		}
		if email == "" {
			if email, err = prompt(in, out, "Email address: "); err != nil {
				return err
			}
		}
		password, err := readPassword(in, out)
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := openApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.store.CreateSuperuser(ctx, username, email, password)
		if verrs, ok := validation.As(err); ok {
			return fmt.Errorf("invalid input: %s", verrs.Error())
		}
		if err != nil {
			return err
		}

		log.Info("superuser created", "user_id", user.ID, "username", user.Username)
		fmt.Fprintln(out, "Superuser created successfully.")
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().String("username", "", "username of the new superuser")
	createSuperuserCmd.Flags().String("email", "", "email address of the new superuser")
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword asks twice without echo on a terminal and reads one line otherwise.
func readPassword(in *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, out, "")
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(first), nil
}
