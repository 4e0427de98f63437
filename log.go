package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	terminal "golang.org/x/term"
)

func init() {
	log.SetFormatter(&customFormatter{
		isTerminal: terminal.IsTerminal(int(os.Stderr.Fd())),
	})
}

type customFormatter struct {
	isTerminal bool
}

func (f *customFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	// Color only when writing to the terminal, not after --log-file redirection
	var startColor, endColor, spacing string
	if f.isTerminal && (entry.Logger == nil || entry.Logger.Out == os.Stderr) {
		endColor = "\x1b[0m"
		switch entry.Level {
		case log.DebugLevel:
			startColor = "\x1b[36;1m" // bright cyan
		case log.InfoLevel:
			startColor = "\x1b[32;1m" // bright green
		case log.WarnLevel:
			startColor = "\x1b[33;1m" // bright yellow
		case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
			startColor = "\x1b[31;1m" // bright red
		default:
			endColor = ""
		}
	}
	levelName := strings.ToUpper(entry.Level.String())
	if levelName == "WARNING" {
		levelName = "WARN"
	}
	if len(levelName) == 4 {
		spacing = " "
	}
	levelText := fmt.Sprintf("[%s%s%s]%s", startColor, levelName, endColor, spacing)

	// Multi-line messages, such as captured utility output, are indented to
	// line up under the first line's message text
	message := strings.ReplaceAll(strings.TrimRight(entry.Message, "\n"), "\n", "\n"+strings.Repeat(" ", 28))
	fmt.Fprintf(b, "%s %s %s\n", entry.Time.Format("2006-01-02 15:04:05"), levelText, message)
	return b.Bytes(), nil
}
