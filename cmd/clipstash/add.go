package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/gate"
	"go.klb.dev/clipstash/internal/item"
	"go.klb.dev/clipstash/internal/message"
	"go.klb.dev/clipstash/internal/wire"
)

func newAddCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add stdin to the clipboard history",
		Long: `Reads stdin and sends it to the running clipstash server as one
history entry. To add an image:

  clipstash add --mime image/png < screenshot.png`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runAdd(v) },
	}

	f := cmd.Flags()
	f.String("mime", item.FormatText, "format key of the data being added")
	f.String("source", defaultSource(), "source identifier")
	addConfigFlag(cmd)

	return cmd
}

func runAdd(v *viper.Viper) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	conn, err := gate.Dial(gate.HistoryServer)
	if err != nil {
		return fmt.Errorf("no clipstash server is running: %w", err)
	}
	wc := wire.New(conn)
	defer wc.Close()

	it := item.New()
	it.SetFormat(v.GetString("mime"), data)

	raw, err := message.FromItem(v.GetString("source"), it).Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return wc.WriteMessage(raw)
}
