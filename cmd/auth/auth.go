package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skybound/skybound/internal/buildinfo"
	"github.com/skybound/skybound/internal/catalog"
	"github.com/skybound/skybound/internal/conf"
	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/form"
	"github.com/skybound/skybound/internal/httpclient"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/session"
)

// Commands returns login, logout and whoami. They share the session file
// configured by cli.sessionfile.
func Commands(settings *conf.Settings, info *buildinfo.Info) []*cobra.Command {
	return []*cobra.Command{
		loginCommand(settings, info),
		logoutCommand(settings),
		whoamiCommand(settings),
	}
}

func loginCommand(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			store, err := openStore(settings)
			if err != nil {
				return err
			}

			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Contraseña: ")
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			userAgent := settings.Backend.UserAgent
			if userAgent != "" {
				userAgent = info.UserAgent(userAgent)
			}
			client := httpclient.New(httpclient.ConfigFromSettings(settings, userAgent))
			defer client.Close()

			backend := catalog.New(client, logger.Global().Module("catalog"))
			return login(ctx, cmd.OutOrStdout(), backend, store, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "correo", "", "Email of the account")
	cmd.Flags().StringVar(&password, "clave", "", "Password, read from stdin when omitted")
	_ = cmd.MarkFlagRequired("correo")

	return cmd
}

func logoutCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			return logout(cmd.OutOrStdout(), store)
		},
	}
}

func whoamiCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			whoami(cmd.OutOrStdout(), store)
			return nil
		},
	}
}

func openStore(settings *conf.Settings) (*session.Store, error) {
	path, err := settings.SessionFilePath()
	if err != nil {
		return nil, err
	}
	return session.NewStore(session.NewFileKV(path), logger.Global().Module("session")), nil
}

// login exchanges the credentials for a token and stores the session.
// Backend rejections are reported as bad credentials.
func login(ctx context.Context, out io.Writer, backend *catalog.Backend, store *session.Store, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.Newf("correo and clave are required").
			Component("cli").
			Category(errors.CategoryValidation).
			Build()
	}

	resp, err := backend.Login(ctx, email, form.HashPassword(password))
	if err != nil {
		var reqErr *httpclient.RequestError
		if errors.As(err, &reqErr) {
			return errors.Newf("correo o contraseña incorrectos").
				Component("cli").
				Category(errors.CategoryValidation).
				Context("status", reqErr.Status).
				Build()
		}
		return err
	}

	if err := store.Login(resp.User, resp.Token); err != nil {
		return err
	}
	fmt.Fprintf(out, "Hola, %s\n", resp.User.FirstNames)
	return nil
}

func logout(out io.Writer, store *session.Store) error {
	if err := store.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Sesión cerrada")
	return nil
}

func whoami(out io.Writer, store *session.Store) {
	sess, ok := store.Load()
	if !ok {
		fmt.Fprintln(out, "No hay sesión iniciada")
		return
	}
	fmt.Fprintf(out, "%s %s <%s>\n", sess.User.FirstNames, sess.User.LastNames, sess.User.Email)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.New(err).
			Component("cli").
			Category(errors.CategoryFileIO).
			Context("operation", "read-password").
			Build()
	}
	return strings.TrimRight(line, "\r\n"), nil
}
