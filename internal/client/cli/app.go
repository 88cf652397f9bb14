package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/config"
)

var errUsage = errors.New("usage: client [flags] upload <ownerID> <file> [published] | unlock <ownerID> | list <ownerID>")

type tokenSetter interface {
	SetToken(token string)
}

type App struct {
	config *config.Config
	client client.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	hc, err := client.NewHTTPClient(c)
	if err != nil {
		return nil, err
	}
	return &App{config: c, client: hc, reader: bufio.NewReader(in), out: out}, nil
}

// Run executes one command given as positional arguments.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	ownerID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || ownerID <= 0 {
		return fmt.Errorf("bad owner id %q", args[1])
	}

	if err := a.ensureToken(); err != nil {
		return err
	}

	switch args[0] {
	case "upload":
		return a.upload(ctx, ownerID, args[2:])
	case "unlock":
		if err := a.client.Unlock(ctx, ownerID); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "lock of %d released\n", ownerID)
		return nil
	case "list":
		return a.list(ctx, ownerID)
	default:
		return errUsage
	}
}

func (a *App) ensureToken() error {
	if a.config.Token != "" {
		return nil
	}
	tok, err := GetToken(a.reader, a.out)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if tok == "" {
		return errors.New("a token is required")
	}
	a.config.Token = tok
	if ts, ok := a.client.(tokenSetter); ok {
		ts.SetToken(tok)
	}
	return nil
}

func (a *App) upload(ctx context.Context, ownerID int64, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	published := false
	if len(args) == 2 {
		v, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("bad published flag %q", args[1])
		}
		published = v
	}

	branchNo, err := a.client.UploadFile(ctx, ownerID, args[0], published)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded %s as branch %d\n", args[0], branchNo)
	return nil
}

func (a *App) list(ctx context.Context, ownerID int64) error {
	docs, err := a.client.List(ctx, ownerID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tFILE\tPUBLISHED\tUPDATED\tUSER")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%d\n",
			d.BranchNo, d.FileName, d.Published, d.UpdateDate.Format("2006-01-02 15:04:05"), d.UpdateUserID)
	}
	return tw.Flush()
}
