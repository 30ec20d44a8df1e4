// rentclient is a CLI tool for exercising the rental proxy and the in-page
// cart sync. Each command performs a single operation, making it composable
// for scripts.
//
// Commands:
//
//	rentclient products -proxy URL
//	rentclient projects -proxy URL
//	rentclient quote -proxy URL -project SLUG -start DATE (-end DATE | -preset P) [-set id=qty,...]
//	rentclient order -proxy URL -token T -project SLUG -start DATE (-end DATE | -preset P) [-book]
//	rentclient sync -proxy URL -page URL -project SLUG -start DATE (-end DATE | -preset P)
//
// Examples:
//
//	rentclient quote -project retile -start 2026-05-01 -preset weekend
//	URL=$(rentclient order -token "$TOKEN" -project retile -start 2026-05-01 -end 2026-05-03 -q)
//	rentclient sync -page https://tools.example/projects/retile -project retile -start 2026-05-01 -preset 1w
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"rentsync/internal/browser"
	"rentsync/internal/catalog"
	"rentsync/internal/clientinfo"
	"rentsync/internal/idmap"
	"rentsync/internal/model"
	"rentsync/internal/ordering"
	"rentsync/internal/quote"
	"rentsync/internal/widget"
)

// clientVersion is sent in the Rental-Client header.
const clientVersion = "1.0.0"

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	proxyURL string
	quiet    bool
	noColor  bool
	verbose  bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray = "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "products":
		runProducts(ctx, args)
	case "projects":
		runProjects(ctx, args)
	case "quote":
		runQuote(ctx, args)
	case "order":
		runOrder(ctx, args)
	case "sync":
		runSync(ctx, args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `rentclient - rental proxy and cart sync tool

Usage:
  rentclient <command> [options]

Commands:
  products  List the platform products visible in the shop
  projects  List catalog projects
  quote     Price a project selection over a rental period
  order     Create a platform order and print its checkout URL
  sync      Push a project selection into the widget cart of a storefront page

Examples:
  # Quote a weekend of bathroom retiling
  rentclient quote -project retile -start 2026-05-01 -preset weekend

  # Same selection with two saws and no spacers
  rentclient quote -project retile -start 2026-05-01 -preset weekend -set saw=2,spacers=0

  # Create the order and capture the checkout URL
  URL=$(rentclient order -token "$TOKEN" -project retile -start 2026-05-01 -end 2026-05-03 -q)

  # Drive the storefront page's widget cart in a visible browser
  rentclient sync -page https://tools.example/projects/retile -project retile -start 2026-05-01 -preset 1w -headful

Run 'rentclient <command> -h' for command-specific options.
`)
}

// =============================================================================
// SELECTION FLAGS
// =============================================================================

// selectionFlags are shared by quote, order and sync.
type selectionFlags struct {
	project string
	set     string
	start   string
	end     string
	preset  string
}

func (s *selectionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.project, "project", "", "Catalog project slug (required)")
	fs.StringVar(&s.set, "set", "", "Quantity overrides, e.g. saw=2,spacers=0")
	fs.StringVar(&s.start, "start", "", "First rental day, YYYY-MM-DD (required)")
	fs.StringVar(&s.end, "end", "", "Last rental day, YYYY-MM-DD")
	fs.StringVar(&s.preset, "preset", "", "Duration preset: 1d, weekend, 1w, 2w, 1m")
}

func (s *selectionFlags) period() (model.RentalPeriod, error) {
	return model.ParsePeriod(s.start, s.end, s.preset, time.Local)
}

// items fetches the project and applies the quantity overrides.
func (s *selectionFlags) items(ctx context.Context) ([]model.RentalItem, error) {
	overrides, err := parseQuantities(s.set)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Project catalog.Project `json:"project"`
	}
	if err := doRequest(ctx, http.MethodGet, "/catalog/projects/"+url.PathEscape(s.project), nil, &resp); err != nil {
		return nil, err
	}
	return applyQuantities(resp.Project.Items(), overrides)
}

func addCommonFlags(fs *flag.FlagSet) {
	fs.StringVar(&proxyURL, "proxy", "http://localhost:8080", "Rental proxy base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the essential value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

func parseFlags(fs *flag.FlagSet, args []string, usage string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rentclient %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// parseQuantities reads "id=qty,id=qty".
func parseQuantities(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, qty, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid quantity override %q, want id=qty", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid quantity in %q", pair)
		}
		out[strings.TrimSpace(id)] = n
	}
	return out, nil
}

// applyQuantities sets overridden quantities on items. Every override must
// name an item of the selection.
func applyQuantities(items []model.RentalItem, overrides map[string]int) ([]model.RentalItem, error) {
	seen := make(map[string]bool, len(overrides))
	out := make([]model.RentalItem, len(items))
	for i, item := range items {
		if qty, ok := overrides[item.ID]; ok {
			item.Quantity = qty
			seen[item.ID] = true
		}
		out[i] = item
	}
	for id := range overrides {
		if !seen[id] {
			return nil, fmt.Errorf("item %s is not part of the project", id)
		}
	}
	return out, nil
}

// =============================================================================
// PRODUCTS AND PROJECTS
// =============================================================================

func runProducts(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	addCommonFlags(fs)
	parseFlags(fs, args, "products [options]")

	proxy, err := newProxyClient("")
	if err != nil {
		fatal("%v", err)
	}
	products, err := proxy.ListProducts(ctx)
	if err != nil {
		fatal("Failed to list products: %v", model.UserMessage(err))
	}

	for _, p := range products {
		if quiet {
			fmt.Println(p.ID)
			continue
		}
		fmt.Printf("  %s%-36s%s  %-24s %s  %s\n", colorCyan, p.ID, colorReset, p.Slug, p.BasePrice.StringFixed(2), p.Name)
	}
	printSuccess("%d products", len(products))
}

func runProjects(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("projects", flag.ExitOnError)
	addCommonFlags(fs)
	parseFlags(fs, args, "projects [options]")

	var resp struct {
		Projects []catalog.Project `json:"projects"`
	}
	if err := doRequest(ctx, http.MethodGet, "/catalog/projects", nil, &resp); err != nil {
		fatal("Failed to list projects: %v", err)
	}
	for _, p := range resp.Projects {
		if quiet {
			fmt.Println(p.Slug)
			continue
		}
		fmt.Printf("  %s%-20s%s %s\n", colorCyan, p.Slug, colorReset, p.Name)
	}
	printSuccess("%d projects", len(resp.Projects))
}

// =============================================================================
// QUOTE COMMAND
// =============================================================================

func runQuote(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	addCommonFlags(fs)
	var sel selectionFlags
	sel.register(fs)
	var days int
	fs.IntVar(&days, "days", 0, "Rental days; overrides the dates when set")
	parseFlags(fs, args, "quote -project SLUG -start DATE (-end DATE | -preset P) [options]")

	if sel.project == "" || (sel.start == "" && days == 0) {
		fs.Usage()
		os.Exit(1)
	}
	overrides, err := parseQuantities(sel.set)
	if err != nil {
		fatal("%v", err)
	}

	req := map[string]any{
		"project_slug": sel.project,
		"quantities":   overrides,
		"start_date":   sel.start,
		"end_date":     sel.end,
		"preset":       sel.preset,
	}
	if days > 0 {
		req["rental_days"] = days
	}

	var resp struct {
		Quote quote.Quote `json:"quote"`
	}
	if err := doRequest(ctx, http.MethodPost, "/quote", req, &resp); err != nil {
		fatal("Failed to quote: %v", err)
	}

	q := resp.Quote
	if quiet {
		fmt.Println(q.GrandTotal.StringFixed(2))
		return
	}
	for _, l := range q.Lines {
		fmt.Printf("  %-32s x%-3d %10s\n", l.Name, l.Quantity, l.Total.StringFixed(2))
	}
	fmt.Printf("  %sRental days:%s %d\n", colorYellow, colorReset, q.RentalDays)
	fmt.Printf("  First day:      %10s\n", q.FirstDayTotal.StringFixed(2))
	fmt.Printf("  Remaining days: %10s\n", q.RemainingDaysTotal.StringFixed(2))
	fmt.Printf("  Consumables:    %10s\n", q.ConsumablesTotal.StringFixed(2))
	printSuccess("Total %s", q.GrandTotal.StringFixed(2))
}

// =============================================================================
// ORDER COMMAND
// =============================================================================

func runOrder(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	addCommonFlags(fs)
	var sel selectionFlags
	sel.register(fs)
	var token string
	var book bool
	fs.StringVar(&token, "token", os.Getenv("RENTAL_PROXY_TOKEN"), "Proxy bearer token")
	fs.BoolVar(&book, "book", false, "Reserve stock before returning the checkout URL")
	parseFlags(fs, args, "order -token T -project SLUG -start DATE (-end DATE | -preset P) [options]")

	if sel.project == "" || sel.start == "" {
		fs.Usage()
		os.Exit(1)
	}
	period, err := sel.period()
	if err != nil {
		fatal("%v", model.UserMessage(err))
	}
	items, err := sel.items(ctx)
	if err != nil {
		fatal("Failed to load project: %v", err)
	}

	proxy, err := newProxyClient(token)
	if err != nil {
		fatal("%v", err)
	}
	logger := newLogger()
	resolver := idmap.NewResolver(proxy, nil, idmap.Options{Logger: logger})
	flow := ordering.NewFlow(ordering.Resolving(proxy, resolver), logger)

	printInfo("Creating order for %s to %s", period.StartsAt(), period.StopsAt())
	order, err := flow.CreateOrder(ctx, ordering.OrderRequest{Items: items, Period: period, Book: book})
	if err != nil {
		var stepErr *ordering.StepError
		if errors.As(err, &stepErr) && stepErr.OrderID != "" {
			printWarning("Partial order left on the platform: %s", stepErr.OrderID)
		}
		fatal("%v", model.UserMessage(err))
	}

	if quiet {
		fmt.Println(order.CheckoutURL)
		return
	}
	printSuccess("Order created")
	fmt.Printf("  ID:       %s%s%s\n", colorCyan, order.OrderID, colorReset)
	if order.OrderNumber != "" {
		fmt.Printf("  Number:   %s\n", order.OrderNumber)
	}
	fmt.Printf("  Checkout: %s%s%s\n", colorGreen, order.CheckoutURL, colorReset)
}

// =============================================================================
// SYNC COMMAND
// =============================================================================

func runSync(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	addCommonFlags(fs)
	var sel selectionFlags
	sel.register(fs)
	var pageURL, scriptURL string
	var headful bool
	var timeout time.Duration
	fs.StringVar(&pageURL, "page", "", "Storefront page hosting the widget (required)")
	fs.StringVar(&scriptURL, "script", "", "Widget script URL (default: from the proxy's storefront config)")
	fs.BoolVar(&headful, "headful", false, "Show the browser window")
	fs.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall sync timeout")
	parseFlags(fs, args, "sync -page URL -project SLUG -start DATE (-end DATE | -preset P) [options]")

	if pageURL == "" || sel.project == "" || sel.start == "" {
		fs.Usage()
		os.Exit(1)
	}
	period, err := sel.period()
	if err != nil {
		fatal("%v", model.UserMessage(err))
	}
	items, err := sel.items(ctx)
	if err != nil {
		fatal("Failed to load project: %v", err)
	}
	if scriptURL == "" {
		var front struct {
			WidgetScriptURL string `json:"widget_script_url"`
		}
		if err := doRequest(ctx, http.MethodGet, "/storefront/config", nil, &front); err != nil {
			printWarning("Storefront config unavailable: %v", err)
		}
		scriptURL = front.WidgetScriptURL
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt, err := syncCart(ctx, pageURL, !headful, widget.SyncRequest{Items: items, Period: period}, scriptURL)
	if attempt != nil && verbose {
		data, _ := json.MarshalIndent(attempt, "", "  ")
		printJSON(data, "  ")
	}
	if err != nil {
		if attempt != nil {
			for _, f := range attempt.Failed {
				printError("%s: %s", f.ProductID, f.Reason)
			}
			for _, sh := range attempt.Short {
				printWarning("%s: %d of %d units in cart", sh.Name, sh.Got, sh.Wanted)
			}
		}
		fatal("%v", model.UserMessage(err))
	}

	printSuccess("Cart synced via %s", strings.Join(attempt.AppliedChannels, ", "))
	if !attempt.Confirmed {
		printWarning("Widget exposes no trustworthy cart state; success is assumed")
	}
	for _, id := range attempt.Added {
		fmt.Printf("  + %s\n", id)
	}
}

// syncCart opens pageURL in Chrome and runs one widget cart sync on it. The
// browser is closed before returning.
func syncCart(ctx context.Context, pageURL string, headless bool, req widget.SyncRequest, scriptURL string) (*widget.CartSyncAttempt, error) {
	logger := newLogger()
	b, err := browser.Launch(ctx, logger, browser.Options{Headless: headless})
	if err != nil {
		return nil, err
	}
	defer b.Close()
	if err := b.Open(ctx, pageURL); err != nil {
		return nil, err
	}

	proxy, err := newProxyClient("")
	if err != nil {
		return nil, err
	}
	resolver := idmap.NewResolver(proxy, nil, idmap.Options{Logger: logger})

	opts := widget.DefaultOptions()
	opts.ScriptSrc = scriptURL
	return widget.NewSession(b, resolver, logger, opts).Sync(ctx, req)
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func newProxyClient(token string) (*ordering.ProxyClient, error) {
	return ordering.NewProxyClient(ordering.ProxyConfig{
		BaseURL: proxyURL,
		Token:   token,
		Client:  clientinfo.Info{Name: "rentclient", Version: clientVersion},
		Logger:  newLogger(),
	})
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// doRequest calls a proxy route and decodes the JSON response into out.
// Error responses are reported with the proxy's error envelope.
func doRequest(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	var bodyBytes []byte
	if body != nil {
		var err error
		if bodyBytes, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(proxyURL, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	hdr, _ := clientinfo.Format(clientinfo.Info{Name: "rentclient", Version: clientVersion})
	req.Header.Set(clientinfo.Header, hdr)

	if verbose {
		printRequest(method, path, bodyBytes)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if verbose {
		printResponse(resp.StatusCode, respBody, time.Since(start))
	}

	if resp.StatusCode >= 400 {
		var envelope model.ErrorResponse
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != "" {
			if envelope.Details != "" {
				return fmt.Errorf("HTTP %d: %s (%s)", resp.StatusCode, envelope.Error, envelope.Details)
			}
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, envelope.Error)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Fprintf(os.Stderr, "%s→ %s %s%s\n", colorGray, method, path, colorReset)
	if len(body) > 0 {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	color := colorGreen
	if status >= 400 {
		color = colorRed
	}
	fmt.Fprintf(os.Stderr, "%s← %d%s %s(%s)%s\n", color, status, colorReset, colorGray, duration.Round(time.Millisecond), colorReset)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, prefix, "  "); err != nil {
		fmt.Fprintf(os.Stderr, "%s%s\n", prefix, data)
		return
	}
	fmt.Fprintf(os.Stderr, "%s%s\n", prefix, buf.String())
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...any) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...any) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
