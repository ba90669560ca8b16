package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quoteintake/internal"
	"quoteintake/internal/pipeline"
	"quoteintake/internal/review"
	"quoteintake/internal/source"
	"quoteintake/internal/util"
)

var ingestFlags struct {
	mapping    string
	transcribe string
	remove     []string
	setPrice   map[string]string
	confirm    bool
	out        string
	asJSON     bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Extract candidate items from a spreadsheet or document",
	Long: `Runs one intake session on a file. Spreadsheets whose columns cannot be
recognised print a preview; rerun with --map to pick the columns by index.
Documents without extractable items print their raw text; rerun with
--transcribe to load items typed up from it.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFlags.mapping, "map", "", "column mapping, e.g. name=0,price=1,expiry=2,code=3")
	f.StringVar(&ingestFlags.transcribe, "transcribe", "", "sheet with name,price[,expiry,code] columns typed up from the raw text")
	f.StringSliceVar(&ingestFlags.remove, "remove", nil, "item ids to drop before confirming")
	f.StringToStringVar(&ingestFlags.setPrice, "set-price", nil, "price corrections, e.g. row-3=12.5")
	f.BoolVar(&ingestFlags.confirm, "confirm", false, "confirm the reviewed items into the order store")
	f.StringVar(&ingestFlags.out, "out", "", "write the items to this xlsx file")
	f.BoolVar(&ingestFlags.asJSON, "json", false, "print items as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	in, err := source.FromFile(args[0])
	if err != nil {
		return err
	}

	orch := application.Orchestrator
	s, err := orch.Ingest(ctx, in)
	defer orch.Close(s.ID())
	if err != nil {
		if pipeline.IsRetryable(err) {
			return fmt.Errorf("%w (retry later)", err)
		}
		return err
	}

	switch s.State() {
	case pipeline.StateNeedsMapping:
		if ingestFlags.mapping == "" {
			printMappingRequest(cmd, s.MappingRequest())
			return nil
		}
		m, err := parseMapping(ingestFlags.mapping)
		if err != nil {
			return err
		}
		if _, err := s.ApplyMapping(m); err != nil {
			return err
		}
	case pipeline.StateRawTextFallback:
		if ingestFlags.transcribe == "" {
			printRawText(cmd, s.Result())
			return nil
		}
		items, err := readTranscription(ingestFlags.transcribe)
		if err != nil {
			return err
		}
		if _, err := s.Transcribe(items); err != nil {
			return err
		}
	}

	if err := applyEdits(s); err != nil {
		return err
	}

	items := s.Items()
	if ingestFlags.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}
	} else {
		res := s.Result()
		cmd.Printf("%s: %d items (%s, confidence %s)\n", s.FileName(), len(items), res.Source, res.Confidence)
		cmd.Println(itemsTable(items))
	}

	if !ingestFlags.confirm {
		if ingestFlags.out != "" {
			res := s.Result()
			res.Items = items
			res.ExtractedCount = len(items)
			return pipeline.ExportReviewXLSX(res, ingestFlags.out)
		}
		return nil
	}

	confirmed, err := s.Confirm(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("confirmed %d items in session %s\n", len(confirmed), s.ID())
	if ingestFlags.out != "" {
		return pipeline.ExportConfirmedXLSX(confirmed, ingestFlags.out)
	}
	return nil
}

func applyEdits(s *pipeline.Session) error {
	for id, raw := range ingestFlags.setPrice {
		price, ok := util.ParsePriceStrict(raw)
		if !ok {
			return fmt.Errorf("invalid price for %s: %q", id, raw)
		}
		if _, err := s.Update(id, review.Patch{UnitPrice: util.FloatPtr(price)}); err != nil {
			return err
		}
	}
	for _, id := range ingestFlags.remove {
		if err := s.Remove(strings.TrimSpace(id)); err != nil {
			return err
		}
	}
	return nil
}

// parseMapping reads "name=0,price=1[,expiry=2][,code=3]".
func parseMapping(arg string) (internal.ColumnMapping, error) {
	m := internal.ColumnMapping{NameColumn: -1, PriceColumn: -1}
	for _, part := range strings.Split(arg, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return m, fmt.Errorf("invalid mapping entry %q", part)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || idx < 0 {
			return m, fmt.Errorf("invalid column index in %q", part)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			m.NameColumn = idx
		case "price":
			m.PriceColumn = idx
		case "expiry":
			m.ExpiryColumn = util.IntPtr(idx)
		case "code":
			m.CodeColumn = util.IntPtr(idx)
		default:
			return m, fmt.Errorf("unknown mapping field %q", key)
		}
	}
	if m.NameColumn < 0 || m.PriceColumn < 0 {
		return m, fmt.Errorf("mapping needs both name and price columns")
	}
	return m, nil
}

// readTranscription loads a typed-up sheet. The first row is a header and
// columns are name, price, expiry and code in that order.
func readTranscription(path string) ([]internal.CandidateItem, error) {
	in, err := source.FromFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := pipeline.ReadRows(in)
	if err != nil {
		return nil, err
	}
	return pipeline.ResolveWithMapping(rows, internal.ColumnMapping{
		NameColumn:   0,
		PriceColumn:  1,
		ExpiryColumn: util.IntPtr(2),
		CodeColumn:   util.IntPtr(3),
	}), nil
}
