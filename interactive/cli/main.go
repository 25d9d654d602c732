//go:build unix

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/interactive/cli/handle"
	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"
)

func main() {
	wrapper := NewCliWrapper()
	if err := wrapper.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	flagHost = &cli.StringFlag{
		Name:    "host",
		Aliases: []string{"h"},
		Value:   "127.0.0.1",
		Usage:   "server host name.",
		EnvVars: []string{consts.Host},
	}
	flagPort = &cli.Int64Flag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   consts.DefaultPort,
		Usage:   "server port number, 0 < port <= 65535 are available.",
		Action: func(c *cli.Context, port int64) error {
			if port <= 0 || port > consts.MaxPort {
				return errs.NewInvalidParamErr()
			}
			return nil
		},
		EnvVars: []string{consts.Port},
	}
	flagTimeout = &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Value:   5 * time.Second,
		Usage:   "dial and echo timeout.",
	}
)

type CliWrapper struct {
	app *cli.App
}

func NewCliWrapper() *CliWrapper {
	wrapper := &CliWrapper{
		app: &cli.App{
			Name:    "tcpmux_client",
			Usage:   "line based client for tcpmux, prints what the server echoes",
			Version: consts.AppVersion,
		},
	}
	wrapper.modifyDefaultHelp()
	wrapper.withFlags()
	wrapper.withAction()
	wrapper.withAuthor()
	return wrapper
}

func (wrapper *CliWrapper) Run(args []string) error {
	return wrapper.app.Run(args)
}

func (wrapper *CliWrapper) modifyDefaultHelp() {
	cli.HelpFlag = &cli.BoolFlag{
		Name: "help",
	}
}

func (wrapper *CliWrapper) withFlags() {
	wrapper.app.Flags = []cli.Flag{
		flagHost,
		flagPort,
		flagTimeout,
	}
}

func (wrapper *CliWrapper) withAction() {
	wrapper.app.Action = func(ctx *cli.Context) error {
		session, err := handle.Dial(ctx.String(flagHost.Name), ctx.Int64(flagPort.Name), ctx.Duration(flagTimeout.Name))
		if err != nil {
			return err
		}
		defer session.Close()
		log.Printf("connected to %v, type \\quit to half close, exit to leave", session.RemoteAddr())

		historyDir := filepath.Join(consts.BaseDir, "cli")
		_ = os.MkdirAll(historyDir, 0755)
		input, err := readline.NewEx(&readline.Config{
			Prompt: "> ",
			AutoComplete: readline.NewPrefixCompleter(
				readline.PcItem("exit"),
				readline.PcItem(`\quit`),
			),
			HistoryFile: filepath.Join(historyDir, fmt.Sprintf("cmd_history_%s", time.Now().Format("20060102"))),
		})
		if err != nil {
			return err
		}
		defer input.Close()
		input.CaptureExitSignal()

		for {
			str, err := input.Readline()
			if err != nil {
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					return nil
				}
				log.Println(err)
				continue
			}
			switch {
			case strings.EqualFold(str, "exit"):
				return nil
			case str == `\quit`:
				rest, err := session.HalfClose()
				if rest != "" {
					fmt.Print(rest)
				}
				return err
			}

			resp, err := session.Echo(str)
			if err != nil {
				if errs.Is(err, errs.ConnClosedErrCode) {
					return err
				}
				log.Println("error occur when echo, err: ", err)
				continue
			}
			fmt.Printf("# %s\n", resp)
		}
	}
}

func (wrapper *CliWrapper) withAuthor() {
	wrapper.app.Authors = []*cli.Author{
		{
			Name:  "Trino",
			Email: "sujun.trinoooo@gmail.com",
		},
	}
}
