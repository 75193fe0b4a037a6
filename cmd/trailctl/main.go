// trailctl works the trail catalogue and pass ledger from the command
// line, against the same files the API serves: inspect routes, query
// the nearest trail for a coordinate, manage pass marks, replay a
// recorded walk through the decision engine, and export the catalogue
// for map viewers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/adapters/passfile"
	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
)

var (
	cataloguePath string
	statusPath    string
	passesPath    string
	timezone      string
)

var rootCmd = &cobra.Command{
	Use:   "trailctl",
	Short: "Madeira trail catalogue and day-pass tooling",
	Long: `trailctl operates on the same catalogue and pass files the API
serves. Nothing here touches a running server; it is the offline view
of the same state.`,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect the route catalogue",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all routes in catalogue order",
	Run:   runRoutesList,
}

var routesShowCmd = &cobra.Command{
	Use:   "show <route-id>",
	Short: "Print one route as JSON",
	Args:  cobra.ExactArgs(1),
	Run:   runRoutesShow,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the route nearest to a coordinate",
	Run:   runNearest,
}

var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Manage today's paid marks",
}

var passMarkCmd = &cobra.Command{
	Use:   "mark <route-id>",
	Short: "Record today's payment for a route",
	Args:  cobra.ExactArgs(1),
	Run:   runPassMark,
}

var passUnmarkCmd = &cobra.Command{
	Use:   "unmark <route-id>",
	Short: "Remove a route's paid mark",
	Args:  cobra.ExactArgs(1),
	Run:   runPassUnmark,
}

var passListCmd = &cobra.Command{
	Use:   "list",
	Short: "List today's active marks",
	Run:   runPassList,
}

var passClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all marks",
	Run:   runPassClear,
}

var replayCmd = &cobra.Command{
	Use:   "replay [track.ndjson]",
	Short: "Replay a recorded walk through the decision engine",
	Long: `Replay feeds location fixes through the proximity engine and prints
each decision transition. Input is NDJSON fixes ({"lat":..,"lon":..})
from a file or stdin, or an encoded polyline via --polyline.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runReplay,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalogue as GeoJSON or KML",
	Run:   runExport,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the catalogue and status feed files",
	Run:   runValidate,
}

var (
	nearestLat     float64
	nearestLon     float64
	replayPolyline string
	replayEveryFix bool
	exportFormat   string
	exportOut      string
	listIsland     string
	listPayingOnly bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cataloguePath, "catalog", "c", "data/paid_routes.geojson", "Catalogue GeoJSON path")
	rootCmd.PersistentFlags().StringVar(&statusPath, "status", "data/route_status.json", "Status feed path")
	rootCmd.PersistentFlags().StringVarP(&passesPath, "passes", "p", "data/passes.json", "Pass file path")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "", "IANA timezone for the calendar day (default system local)")

	routesListCmd.Flags().StringVar(&listIsland, "island", "", "Only routes on this island")
	routesListCmd.Flags().BoolVar(&listPayingOnly, "paying", false, "Only routes that require payment")

	nearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "Latitude")
	nearestCmd.Flags().Float64Var(&nearestLon, "lon", 0, "Longitude")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")

	replayCmd.Flags().StringVar(&replayPolyline, "polyline", "", "Encoded polyline track instead of NDJSON input")
	replayCmd.Flags().BoolVar(&replayEveryFix, "every-fix", false, "Print every decision, not just transitions")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "geojson", "Output format: geojson | kml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")

	routesCmd.AddCommand(routesListCmd, routesShowCmd)
	passCmd.AddCommand(passMarkCmd, passUnmarkCmd, passListCmd, passClearCmd)
	rootCmd.AddCommand(routesCmd, nearestCmd, passCmd, replayCmd, exportCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadIndex reads and validates the catalogue file.
func loadIndex(ctx context.Context) *usecases.RouteIndex {
	routes, err := catalog.NewFileSource(cataloguePath).LoadRoutes(ctx)
	if err != nil {
		log.Fatalf("load catalogue: %v", err)
	}
	index := usecases.NewRouteIndex()
	if err := index.Load(routes); err != nil {
		log.Fatalf("catalogue rejected: %v", err)
	}
	return index
}

// loadLedger opens the pass file in the configured timezone.
func loadLedger() *usecases.PassLedger {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			log.Fatalf("timezone: %v", err)
		}
	}
	return usecases.NewPassLedger(passfile.NewStore(passesPath), loc)
}

func runRoutesList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	index := loadIndex(ctx)
	ledger := loadLedger()

	statuses := map[string]domain.RouteStatus{}
	if feed, err := catalog.NewStatusFile(statusPath).LoadStatuses(ctx); err == nil {
		statuses = feed
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintf(w, "%-8s %-44s %-12s %-7s %-14s %s\n", "ID", "NAME", "ISLAND", "PAYING", "STATUS", "PAID TODAY")
	for _, r := range index.All() {
		if listIsland != "" && r.Island != listIsland {
			continue
		}
		if listPayingOnly && !r.RequiresPayment {
			continue
		}
		status := statuses[r.ID]
		if status == "" {
			status = domain.StatusUnknown
		}
		paid := ""
		if ledger.IsPaid(ctx, r.ID) {
			paid = "yes"
		}
		fmt.Fprintf(w, "%-8s %-44s %-12s %-7t %-14s %s\n", r.ID, truncate(r.Name, 44), r.Island, r.RequiresPayment, status, paid)
	}
}

func runRoutesShow(cmd *cobra.Command, args []string) {
	index := loadIndex(context.Background())
	route, ok := index.Get(args[0])
	if !ok {
		log.Fatalf("route %s not in catalogue", args[0])
	}
	printJSON(route)
}

func runNearest(cmd *cobra.Command, args []string) {
	index := loadIndex(context.Background())
	route, dist := index.Nearest(domain.Point{Lat: nearestLat, Lon: nearestLon})
	if route == nil {
		fmt.Println("catalogue is empty")
		return
	}
	fmt.Printf("%s %s\n", route.ID, route.Name)
	fmt.Printf("distance: %.1f m (threshold %.0f m, within: %t)\n",
		dist, usecases.ProximityThresholdMeters, dist <= usecases.ProximityThresholdMeters)
	if route.RequiresPayment {
		fmt.Println("daily fee required")
	}
}

func runPassMark(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	index := loadIndex(ctx)
	if _, ok := index.Get(args[0]); !ok {
		log.Fatalf("route %s not in catalogue", args[0])
	}
	ledger := loadLedger()
	if err := ledger.MarkPaid(ctx, args[0]); err != nil {
		log.Fatalf("mark paid: %v", err)
	}
	fmt.Printf("%s marked paid for %s\n", args[0], ledger.Today())
}

func runPassUnmark(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	ledger := loadLedger()
	if err := ledger.UnmarkPaid(ctx, args[0]); err != nil {
		log.Fatalf("unmark: %v", err)
	}
	fmt.Printf("%s unmarked\n", args[0])
}

func runPassList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	ledger := loadLedger()
	marks := ledger.Active(ctx)
	if len(marks) == 0 {
		fmt.Printf("no active marks for %s\n", ledger.Today())
		return
	}
	for _, m := range marks {
		fmt.Printf("%s  %s\n", m.RouteID, m.PaidDate)
	}
}

func runPassClear(cmd *cobra.Command, args []string) {
	ledger := loadLedger()
	ledger.Clear(context.Background())
	fmt.Println("all marks removed")
}

func runReplay(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	index := loadIndex(ctx)
	ledger := loadLedger()
	engine := usecases.NewEngine(index, ledger)
	session := usecases.NewProximityService(engine, ledger, index, nil)

	fixes, err := readTrack(args)
	if err != nil {
		log.Fatalf("read track: %v", err)
	}

	var last domain.Action
	for i, fix := range fixes {
		d, err := session.OnFix(ctx, fix)
		if err != nil {
			log.Fatalf("fix %d: %v", i, err)
		}
		if !replayEveryFix && d.Action == last && i > 0 {
			continue
		}
		last = d.Action

		dist := "-"
		if d.NearestRouteID != "" {
			dist = fmt.Sprintf("%.1f m", d.DistanceMeters)
		}
		fmt.Printf("fix %4d  (%9.5f, %10.5f)  %-12s nearest=%s dist=%s paid=%t\n",
			i, fix.Lat, fix.Lon, d.Action, orDash(d.NearestRouteID), dist, d.Paid)
	}
}

// readTrack collects fixes from --polyline, a file argument or stdin.
func readTrack(args []string) ([]domain.Fix, error) {
	if replayPolyline != "" {
		points, err := catalog.DecodeTrack([]byte(replayPolyline))
		if err != nil {
			return nil, err
		}
		fixes := make([]domain.Fix, 0, len(points))
		for _, p := range points {
			fixes = append(fixes, domain.Fix{Lat: p.Lat, Lon: p.Lon})
		}
		return fixes, nil
	}

	in := os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	var fixes []domain.Fix
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var fix domain.Fix
		if err := json.Unmarshal([]byte(line), &fix); err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		fixes = append(fixes, fix)
	}
	return fixes, scanner.Err()
}

func runExport(cmd *cobra.Command, args []string) {
	index := loadIndex(context.Background())

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			log.Fatalf("create %s: %v", exportOut, err)
		}
		defer f.Close()
		out = f
	}

	switch exportFormat {
	case "geojson":
		data, err := catalog.ExportGeoJSON(index.All())
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			log.Fatalf("write: %v", err)
		}
	case "kml":
		if err := catalog.ExportKML(out, index.All()); err != nil {
			log.Fatalf("export: %v", err)
		}
	default:
		log.Fatalf("unknown format %q (want geojson or kml)", exportFormat)
	}
}

func runValidate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	failed := false

	routes, err := catalog.NewFileSource(cataloguePath).LoadRoutes(ctx)
	if err != nil {
		fmt.Printf("catalogue: FAIL: %v\n", err)
		failed = true
	} else if err := usecases.NewRouteIndex().Load(routes); err != nil {
		fmt.Printf("catalogue: FAIL: %v\n", err)
		failed = true
	} else {
		fmt.Printf("catalogue: OK (%d routes)\n", len(routes))
	}

	if statuses, err := catalog.NewStatusFile(statusPath).LoadStatuses(ctx); err != nil {
		fmt.Printf("status feed: FAIL: %v\n", err)
		failed = true
	} else {
		fmt.Printf("status feed: OK (%d entries)\n", len(statuses))
	}

	if failed {
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(data))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
