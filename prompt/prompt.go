// Package prompt implements the interactive surface of the tool: the file
// selector and the mode and target-CRS menus. Every prompt reads one line
// from a shared input stream so the whole flow can be driven by a scripted
// reader in tests, and every prompt honours context cancellation so an
// interrupt delivered mid-prompt unblocks the caller instead of waiting for
// the user to press enter.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sfomuseum/go-geotiff-merge/operations/gather"
	"github.com/sfomuseum/go-geotiff-merge/raster"
)

// Mode enumerates the processing modes on the main menu.
type Mode int

const (
	ModeMerge Mode = iota + 1
	ModeReproject
	ModeBoth
	ModeCancel
)

// Prompter asks questions on out and reads answers from a single input
// stream.
type Prompter struct {
	lines    chan string
	out      io.Writer
	read_err error
}

// NewPrompter returns a Prompter reading answers from in and printing
// questions on out. Reading happens on a dedicated goroutine so prompts can
// abandon a pending read when their context is cancelled; an abandoned read
// leaves that goroutine blocked on in, which is fine because the process is
// on its way out by then.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {

	p := &Prompter{
		lines: make(chan string),
		out:   out,
	}

	go func() {

		scanner := bufio.NewScanner(in)

		for scanner.Scan() {
			p.lines <- strings.TrimSpace(scanner.Text())
		}

		p.read_err = scanner.Err()
		close(p.lines)
	}()

	return p
}

func (p *Prompter) readLine(ctx context.Context, label string) (string, error) {

	fmt.Fprint(p.out, label)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:

		if !ok {

			if p.read_err != nil {
				return "", fmt.Errorf("Failed to read input, %w", p.read_err)
			}

			return "", io.EOF
		}

		return line, nil
	}
}

// SelectFiles renders a numbered listing of rasters with best-effort
// metadata and reads a selection expression. The second return value is true
// when the user chose to quit. A malformed or empty selection falls back to
// selecting every file rather than failing the run.
func (p *Prompter) SelectFiles(ctx context.Context, rasters []*gather.GatherRastersResponse, warn func(string)) ([]*gather.GatherRastersResponse, bool, error) {

	fmt.Fprintf(p.out, "\nFILES IN CURRENT FOLDER:\n\n")

	for i, rsp := range rasters {

		name := rsp.Path

		// truncate by rune so a multibyte filename is never split
		// mid-sequence

		if runes := []rune(name); len(runes) > 40 {
			name = string(runes[:40])
		}

		if rsp.Info == nil {
			fmt.Fprintf(p.out, "%2d. %-40s | (Cannot read)\n", i+1, name)
			continue
		}

		size_mb := float64(rsp.Size) / 1024.0 / 1024.0

		fmt.Fprintf(p.out, "%2d. %-40s | %5.1f MB | %5d×%-5d | %s\n",
			i+1, name, size_mb, rsp.Info.Width, rsp.Info.Height, raster.CRSDisplay(rsp.Info.CRS))
	}

	fmt.Fprintf(p.out, "\n%s\n", strings.Repeat("-", 60))
	fmt.Fprintln(p.out, "SELECT FILES TO PROCESS:")
	fmt.Fprintln(p.out, "  [A] - ALL files")
	fmt.Fprintln(p.out, "  [N] - Enter numbers (e.g., 1,3,5 or 1-3)")
	fmt.Fprintln(p.out, "  [Q] - Quit")

	choice, err := p.readLine(ctx, "\nYour choice: ")

	if err != nil {
		return nil, false, err
	}

	choice = strings.ToUpper(choice)

	switch choice {
	case "Q":
		return nil, true, nil
	case "A":
		return rasters, false, nil
	default:
		// pass
	}

	indices, ok := ParseSelection(choice, len(rasters), warn)

	if !ok {

		if warn != nil {
			warn("Invalid selection, using ALL files")
		}

		return rasters, false, nil
	}

	selected := make([]*gather.GatherRastersResponse, len(indices))

	for i, idx := range indices {
		selected[i] = rasters[idx]
	}

	return selected, false, nil
}

// ParseSelection resolves a selection expression (comma-separated indices
// and inclusive ranges, 1-based) against count entries in to zero-based
// indices, in resolution order, duplicates permitted. Out-of-range indices
// are dropped through warn. ok is false when the expression is malformed or
// resolves to nothing; callers are expected to fall back to selecting
// everything.
func ParseSelection(expr string, count int, warn func(string)) ([]int, bool) {

	numbers := make([]int, 0)

	for _, part := range strings.Split(expr, ",") {

		part = strings.TrimSpace(part)

		if strings.Contains(part, "-") {

			edges := strings.SplitN(part, "-", 2)

			start, err := strconv.Atoi(strings.TrimSpace(edges[0]))

			if err != nil {
				return nil, false
			}

			end, err := strconv.Atoi(strings.TrimSpace(edges[1]))

			if err != nil {
				return nil, false
			}

			for n := start; n <= end; n++ {
				numbers = append(numbers, n)
			}

			continue
		}

		n, err := strconv.Atoi(part)

		if err != nil {
			return nil, false
		}

		numbers = append(numbers, n)
	}

	indices := make([]int, 0, len(numbers))

	for _, n := range numbers {

		if n < 1 || n > count {

			if warn != nil {
				warn(fmt.Sprintf("Warning: File #%d doesn't exist", n))
			}

			continue
		}

		indices = append(indices, n-1)
	}

	if len(indices) == 0 {
		return nil, false
	}

	return indices, true
}

// ProcessingMode renders the mode menu and re-prompts until a valid option
// is entered.
func (p *Prompter) ProcessingMode(ctx context.Context) (Mode, error) {

	fmt.Fprintln(p.out, "\nSELECT PROCESSING MODE:")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "  1. MERGE ONLY - Combine multiple GeoTIFFs into one")
	fmt.Fprintln(p.out, "  2. REPROJECT ONLY - Change coordinate system of one file")
	fmt.Fprintln(p.out, "  3. BOTH - Merge AND reproject (recommended)")
	fmt.Fprintln(p.out, "  4. Cancel")

	for {

		choice, err := p.readLine(ctx, "\nChoose (1-4): ")

		if err != nil {
			return ModeCancel, err
		}

		switch choice {
		case "1":
			return ModeMerge, nil
		case "2":
			return ModeReproject, nil
		case "3":
			return ModeBoth, nil
		case "4":
			return ModeCancel, nil
		default:
			fmt.Fprintln(p.out, "Please enter 1, 2, 3, or 4")
		}
	}
}

// TargetCRS renders the target-CRS menu and re-prompts until a valid option
// is entered.
func (p *Prompter) TargetCRS(ctx context.Context) (raster.TargetCRS, error) {

	fmt.Fprintln(p.out, "\nCHOOSE TARGET COORDINATE SYSTEM:")
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "  1. WGS84 (EPSG:4326) - For web maps, Google Earth")
	fmt.Fprintln(p.out, "  2. UTM Zone - Automatic based on image location")
	fmt.Fprintln(p.out, "  3. Enter custom EPSG code (e.g., 3857, 32633)")
	fmt.Fprintln(p.out, "  4. Keep original CRS")

	for {

		choice, err := p.readLine(ctx, "\nChoose (1-4): ")

		if err != nil {
			return raster.TargetCRS{}, err
		}

		switch choice {
		case "1":
			return raster.WGS84, nil
		case "2":
			return raster.TargetCRS{Kind: raster.TargetAutoUTM}, nil
		case "3":

			code, err := p.readLine(ctx, "Enter EPSG code (e.g., 3857): ")

			if err != nil {
				return raster.TargetCRS{}, err
			}

			if !strings.HasPrefix(strings.ToUpper(code), "EPSG:") {
				code = fmt.Sprintf("EPSG:%s", code)
			}

			return raster.TargetCRS{Kind: raster.TargetCustom, Code: code}, nil

		case "4":
			return raster.TargetCRS{Kind: raster.TargetKeepOriginal}, nil
		default:
			fmt.Fprintln(p.out, "Invalid choice. Try again.")
		}
	}
}

// OutputName prompts for an output filename, falling back to default_name on
// an empty answer.
func (p *Prompter) OutputName(ctx context.Context, default_name string) (string, error) {

	name, err := p.readLine(ctx, fmt.Sprintf("\nOutput filename [%s]: ", default_name))

	if err != nil {
		return "", err
	}

	if name == "" {
		name = default_name
	}

	return name, nil
}

// Confirm asks a yes/no question and is only true on an explicit "y".
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {

	answer, err := p.readLine(ctx, question)

	if err != nil {
		return false, err
	}

	return strings.ToLower(answer) == "y", nil
}

// Pause blocks until the user presses enter, or until the context is
// cancelled. EOF is fine here; the process is about to exit anyway.
func (p *Prompter) Pause(ctx context.Context) {

	fmt.Fprint(p.out, "\nPress Enter to exit...")

	select {
	case <-ctx.Done():
	case <-p.lines:
	}

	fmt.Fprintln(p.out, "")
}
