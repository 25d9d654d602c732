package consts

import (
	"time"
)

const (
	B = 1 << (iota * 10)
	KB
	MB
	GB
)

const HelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
COMMANDS:
{{range .Commands}}{{if not .HideHelp}}   {{join .Names ", "}}{{ "\t"}}{{.Usage}}{{ "\n" }}{{end}}{{end}}{{end}}{{if .VisibleFlags}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Copyright }}
COPYRIGHT:
   {{.Copyright}}
   {{end}}{{if .Version}}
VERSION:
   {{.Version}}
   {{end}}
`

const (
	AppName    = "tcpmux"
	AppVersion = "0.1.0.261016_alpha"
)

// defaults
const (
	DefaultPort           = 8000
	DefaultWorkers        = 1
	DefaultMaxEvents      = 64 // readiness batch bound per poll call
	DefaultReadBufferSize = 4 * KB
	DefaultLogLevel       = "info"
	DefaultPushInterval   = 5 * time.Second

	MaxPort    = 65535
	MaxWorkers = 256
)
