package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const loginTimeout = 5 * time.Minute

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize cadence with your Spotify account",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.build(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			req, err := st.flow.BeginAuthorization(runCtx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open this URL in your browser to authorize cadence:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  "+req.URL)
			fmt.Fprintln(out)

			var state, code string
			if manual {
				state, code, err = promptRedirect(cmd)
			} else {
				state, code, err = awaitCallback(runCtx, st.cfg.Spotify.RedirectURI, st.logger)
			}
			if err != nil {
				return err
			}

			cred, err := st.flow.CompleteAuthorization(runCtx, state, code)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Authenticated. Token expires %s (refresh token: %s)\n",
				cred.ExpiresAt.Local().Format(time.RFC1123), yesNo(cred.HasRefreshToken()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Paste the redirect URL instead of listening for the callback")
	return cmd
}

// awaitCallback serves the redirect URI locally until the provider calls it once.
func awaitCallback(ctx context.Context, redirectURI string, logger *zap.Logger) (string, string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("parse redirect uri: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	type result struct {
		state, code string
		err         error
	}
	done := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := result{state: q.Get("state"), code: q.Get("code")}
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: authorization denied: %s", domain.ErrAuthExchange, q.Get("error"))
			http.Error(w, "Authorization was denied. You can close this window.", http.StatusBadRequest)
		case res.state == "" || res.code == "":
			http.Error(w, "Missing state or code.", http.StatusBadRequest)
			return
		default:
			fmt.Fprintln(w, "cadence is authorized. You can close this window.")
		}
		select {
		case done <- res:
		default:
		}
	})

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return "", "", fmt.Errorf("listen on %s: %w (use --manual to paste the redirect URL)", u.Host, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 15 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("callback listener stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	timer := time.NewTimer(loginTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.state, res.code, res.err
	case <-timer.C:
		return "", "", errors.New("timed out waiting for the authorization callback")
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

func promptRedirect(cmd *cobra.Command) (string, string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Paste the URL you were redirected to: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return "", "", fmt.Errorf("read redirect url: %w", err)
	}
	return parseRedirect(line)
}

func parseRedirect(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	if denied := q.Get("error"); denied != "" {
		return "", "", fmt.Errorf("%w: authorization denied: %s", domain.ErrAuthExchange, denied)
	}
	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		return "", "", errors.New("redirect url is missing state or code")
	}
	return state, code, nil
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Spotify credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.build(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}
			if err := st.session.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.build(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}
			state, cred, err := st.session.State(cmd.Context())
			if err != nil {
				return err
			}

			expires := "-"
			if !cred.ExpiresAt.IsZero() {
				expires = cred.ExpiresAt.Local().Format(time.RFC1123)
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"state":             state,
					"expires_at":        expires,
					"has_refresh_token": cred.HasRefreshToken(),
					"storage_driver":    st.cfg.Storage.Driver,
					"catalog_source":    st.cfg.Catalog.Source,
				})
			}

			rows := [][]string{
				{"State", string(state)},
				{"Expires", expires},
				{"Refresh token", yesNo(cred.HasRefreshToken())},
				{"Storage", st.cfg.Storage.Driver},
				{"Catalog", st.cfg.Catalog.Source},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
