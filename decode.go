package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"p1dlms/internal/config"
	"p1dlms/internal/sink"
	"p1dlms/pkg/decoder"
	"p1dlms/pkg/framer"
)

var (
	decodeCmd = &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode a hex-encoded frame",
		Long: "decode prints every OBIS element of a hex-encoded frame and the resulting reading.\n" +
			"Without an argument it reads one frame per line from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			p := cfg.Profile.Decoder()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return runInteractive(cmd.InOrStdin(), out, p)
			}
			return runDecode(out, p, args[0])
		},
	}

	decodeJSON bool
)

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "print the reading as JSON")
}

func runInteractive(in io.Reader, out io.Writer, p decoder.Profile) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		fmt.Fprintln(os.Stderr, "Paste a hex frame and press Enter (Ctrl+D to exit).")
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := runDecode(out, p, line); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
	return scanner.Err()
}

func runDecode(out io.Writer, p decoder.Profile, s string) error {
	frames, err := decodeHex(s)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		rep := decoder.Scan(frame, p)
		if decodeJSON {
			if err := printJSON(out, rep); err != nil {
				return err
			}
			continue
		}
		printReport(out, frame, rep)
	}
	return nil
}

// decodeHex parses a hex string, ignoring whitespace, colons and an "0x"
// prefix. Input containing frame flags is split into frames; anything else
// is taken as one frame body.
func decodeHex(s string) ([][]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", "\t", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if data[0] != framer.Flag {
		return [][]byte{data}, nil
	}
	var frames [][]byte
	asm := framer.New(len(data), func(f []byte) { frames = append(frames, f) })
	_, _ = asm.Write(data)
	if len(frames) == 0 {
		return nil, fmt.Errorf("no complete frame between 0x%02X flags", framer.Flag)
	}
	return frames, nil
}

func printReport(out io.Writer, frame []byte, rep decoder.Report) {
	fmt.Fprintf(out, "frame: %d bytes, %d elements, %d resync steps, stop: %s\n",
		len(frame), len(rep.Elements), rep.Steps, rep.Stop)
	for _, el := range rep.Elements {
		if el.Err != nil {
			fmt.Fprintf(out, "  @%-4d %-16s %s\n", el.Offset, el.Identifier, el.Err)
			continue
		}
		value := fmt.Sprintf("%g", el.Scaled)
		if el.Value.Kind == decoder.KindTimestamp {
			value = el.Value.Timestamp
		} else if el.Value.Kind == decoder.KindOctets {
			value = hex.EncodeToString(el.Value.Octets)
		}
		mark := " "
		if el.Assigned {
			mark = "*"
		}
		fmt.Fprintf(out, "%s @%-4d %-16s %-20s %-18s %s\n", mark, el.Offset, el.Identifier, el.Quantity, el.Tag, value)
	}
	if !rep.Found {
		fmt.Fprintln(out, "no known quantities")
		return
	}
	for _, line := range sink.FormatSummary(rep.Reading) {
		fmt.Fprintln(out, line)
	}
}

func printJSON(out io.Writer, rep decoder.Report) error {
	enc := json.NewEncoder(out)
	if !rep.Found {
		return enc.Encode(struct{}{})
	}
	return enc.Encode(rep.Reading)
}
