package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// Record kinds accepted by show --kind.
const (
	kindAd       = "ad"
	kindAnalysis = "analysis"
	kindChat     = "chat"
)

var showKind string

var showCmd = &cobra.Command{
	Use:   "show <ad-id>",
	Short: "Print a stored listing, analysis, or chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		adID := args[0]
		var v any
		switch showKind {
		case kindAd:
			v, err = st.GetAd(ctx, adID)
		case kindAnalysis:
			v, err = st.GetAnalysis(ctx, adID)
		case kindChat:
			v, err = st.GetChat(ctx, adID)
		default:
			return eris.Errorf("unknown kind %q (want ad, analysis, or chat)", showKind)
		}
		if err != nil {
			return eris.Wrapf(err, "show %s %s", showKind, adID)
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

func init() {
	showCmd.Flags().StringVar(&showKind, "kind", kindAd, "record kind: ad, analysis, or chat")
	rootCmd.AddCommand(showCmd)
}

// printJSON writes v as indented JSON without HTML escaping.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}
