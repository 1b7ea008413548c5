package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	ct "github.com/daviddengcn/go-colortext"
	"github.com/manifold/lsptrace/pkg/binlog"
	"github.com/manifold/lsptrace/pkg/console"
	"github.com/manifold/lsptrace/pkg/jsonrpc"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// `lsptrace log` command
func logCmd() *cobra.Command {
	var (
		show int
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "log FILE",
		Short: "Lists the messages of a binary trace",
		Long:  "Lists the messages of a binary trace, one row per message with its direction and index.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fatal(runLog(cmd.OutOrStdout(), afero.NewOsFs(), args[0], show, all))
		},
	}
	cmd.Flags().IntVarP(&show, "show", "s", -1, "pretty print the message with this index")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "pretty print every message")
	return cmd
}

func runLog(out io.Writer, fs afero.Fs, path string, show int, all bool) error {
	records, err := binlog.Open(fs, path)
	if err != nil {
		return err
	}
	items, err := binlog.Items(records)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	lw := &console.LineWriter{Output: out}
	lw.Pad(lo.Max(lo.Map(items, func(item binlog.Item, _ int) int {
		return len(item.Label())
	})))

	if show >= 0 {
		item, ok := lo.Find(items, func(item binlog.Item) bool {
			return item.Index == show
		})
		if !ok {
			return errors.Errorf("no message %d in %s (%d messages)", show, path, len(items))
		}
		writePretty(lw, item)
		return nil
	}
	for _, item := range items {
		if all {
			writePretty(lw, item)
			continue
		}
		lw.WriteLine(item.Label(), summary(item), tagColor(item.Tag), ct.None, false)
	}
	return nil
}

func writePretty(lw *console.LineWriter, item binlog.Item) {
	text, err := item.Pretty()
	if err != nil {
		lw.WriteLine(item.Label(), err.Error(), tagColor(item.Tag), ct.None, true)
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		lw.WriteLine(item.Label(), line, tagColor(item.Tag), ct.None, false)
	}
}

// summary names a message in one line: its method, or the id it answers.
func summary(item binlog.Item) string {
	_, payload, err := jsonrpc.ParseFrame(item.Frame)
	if err != nil {
		return err.Error()
	}
	msg, err := jsonrpc.Decode(payload)
	if err != nil {
		return err.Error()
	}
	switch {
	case msg.IsRequest():
		return fmt.Sprintf("%s (id %v)", msg.Method, msg.ID)
	case msg.IsNotification():
		return msg.Method
	case msg.Error != nil:
		return fmt.Sprintf("error for id %v: %s", msg.ID, msg.Error.Message)
	default:
		return fmt.Sprintf("result for id %v", msg.ID)
	}
}

func tagColor(tag binlog.Tag) ct.Color {
	if tag == binlog.Outgoing {
		return ct.Cyan
	}
	return ct.Green
}
