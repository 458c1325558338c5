package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/resourcehub/pkg/httpclient"
)

// ErrNotLoggedIn はログインが必要な操作を未ログインで実行したことを表す。
var ErrNotLoggedIn = errors.New("ログインしていません。resourcectl login でログインしてください")

// rootOptions は全コマンド共通のフラグ。
type rootOptions struct {
	configPath string
	apiURL     string
	statePath  string
	verbose    bool
	metrics    bool
}

// cli はコマンドツリーと実行中のAppを保持する。
type cli struct {
	opts rootOptions
	app  *App
}

// Run は引数に従ってコマンドを実行する。
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if c.opts.metrics {
			if merr := printMetrics(stderr, c.app.Metrics); merr != nil && err == nil {
				err = merr
			}
		}
		if cerr := c.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resourcectl",
		Short: "Manage tracked resources from the command line",
		Long: `resourcectl is a client for the resource tracking API.

It keeps the login session in a local SQLite file so that
subsequent commands are authenticated automatically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), &c.opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.app = app
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&c.opts.apiURL, "api-url", "", "API base URL (overrides config)")
	flags.StringVar(&c.opts.statePath, "state", "", "path to the session database (overrides config)")
	flags.BoolVarP(&c.opts.verbose, "verbose", "v", false, "print diagnostic logs to stderr")
	flags.BoolVar(&c.opts.metrics, "metrics", false, "print request metrics to stderr on exit")

	cmd.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.registerCmd(),
		c.resourceCmd(),
		c.userCmd(),
	)
	return cmd
}

// requireLogin は未ログインの場合にErrNotLoggedInを返す。
func (c *cli) requireLogin() error {
	if !c.app.Session.State().IsAuthenticated {
		return ErrNotLoggedIn
	}
	return nil
}

// actingAs はログイン中のユーザーIDをX-User-IDとして伝播するコンテキストを返す。
func (c *cli) actingAs(ctx context.Context) context.Context {
	state := c.app.Session.State()
	if state.User == nil {
		return ctx
	}
	return httpclient.WithUserID(ctx, strconv.FormatUint(uint64(state.User.ID), 10))
}

// printf は標準出力に書き込む。
func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.app.out, format, args...)
}
