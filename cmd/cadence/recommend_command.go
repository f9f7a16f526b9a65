package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/similarity"
)

func newRecommendCommand(ctx *commandContext) *cobra.Command {
	var (
		top        int
		limit      int
		timeRange  string
		weight     float64
		strategy   string
		fieldSet   string
		includeOwn bool
		asJSON     bool
		playlist   string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank the catalog against your top tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.build(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}

			opts := st.defaults
			flags := cmd.Flags()
			if flags.Changed("top") {
				opts.TopN = top
			}
			if flags.Changed("limit") {
				opts.SeedLimit = limit
			}
			if flags.Changed("time-range") {
				if !spotify.ValidTimeRange(timeRange) {
					return fmt.Errorf("--time-range must be one of short_term, medium_term, long_term")
				}
				opts.TimeRange = timeRange
			}
			if flags.Changed("popularity-weight") {
				opts.Weights = similarity.PopularityWeighted(weight)
			}
			if flags.Changed("strategy") {
				if opts.Strategy, err = similarity.ParseStrategy(strategy); err != nil {
					return err
				}
			}
			if flags.Changed("fields") {
				if opts.Fields, err = similarity.FieldSet(fieldSet); err != nil {
					return err
				}
			}
			if flags.Changed("include-seeds") {
				opts.IncludeSeeds = includeOwn
			}

			entries, err := st.catalog.Entries(cmd.Context())
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			set, err := st.recommender.RecommendOrSample(cmd.Context(), entries, opts)
			if err != nil {
				return err
			}

			var exported *domain.Playlist
			if cmd.Flags().Changed("playlist") {
				pl, err := st.recommender.ExportPlaylist(cmd.Context(), set, playlist)
				if err != nil {
					return err
				}
				exported = &pl
			}

			if asJSON {
				return writeJSON(cmd, struct {
					domain.RecommendationSet
					Playlist *domain.Playlist `json:"playlist,omitempty"`
				}{set, exported})
			}

			out := cmd.OutOrStdout()
			if set.Fallback {
				fmt.Fprintln(out, "No listening history with audio features; showing a random sample of the catalog.")
			}
			fmt.Fprintln(out, renderRecommendations(set))
			fmt.Fprintf(out, "Run %s (%d seeds, %d with features)\n", set.ID, set.SeedCount, set.FeatureCount)
			if exported != nil {
				fmt.Fprintf(out, "Playlist %q created with %d tracks: %s\n", exported.Name, len(exported.Tracks), exported.URL)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&top, "top", "n", 20, "Number of recommendations")
	flags.IntVar(&limit, "limit", 50, "Number of top tracks used as seeds")
	flags.StringVar(&timeRange, "time-range", "medium_term", "Seed window: short_term, medium_term or long_term")
	flags.Float64Var(&weight, "popularity-weight", 0.5, "Share of the score given to catalog popularity (0-1)")
	flags.StringVar(&strategy, "strategy", "mean", "Seed aggregation: mean or centroid")
	flags.StringVar(&fieldSet, "fields", "basic", "Feature set: basic or extended")
	flags.BoolVar(&includeOwn, "include-seeds", false, "Keep your own top tracks in the results")
	flags.BoolVar(&asJSON, "json", false, "Output as JSON")
	flags.StringVar(&playlist, "playlist", "", "Export the results to a new playlist with this name")
	return cmd
}

func renderRecommendations(set domain.RecommendationSet) string {
	rows := make([][]string, 0, len(set.Results))
	for i, rec := range set.Results {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			rec.Entry.TrackName,
			strings.Join(rec.Entry.Artists, ", "),
			rec.Entry.Genre,
			fmt.Sprintf("%.3f", rec.Similarity),
			fmt.Sprintf("%.3f", rec.CombinedScore),
		})
	}
	return renderTable(
		[]string{"#", "Track", "Artists", "Genre", "Similarity", "Score"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func newProfileCommand(ctx *commandContext) *cobra.Command {
	var (
		timeRange string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the averaged audio features of your top tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.build(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("time-range") {
				timeRange = st.defaults.TimeRange
			}
			if !spotify.ValidTimeRange(timeRange) {
				return fmt.Errorf("--time-range must be one of short_term, medium_term, long_term")
			}
			if !cmd.Flags().Changed("limit") {
				limit = st.defaults.SeedLimit
			}

			lp, err := st.recommender.ListeningProfile(cmd.Context(), timeRange, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, lp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d seed tracks (%s)\n", lp.User.DisplayName, lp.SeedCount, timeRange)
			rows := make([][]string, 0, len(similarity.ExtendedFields))
			for _, f := range similarity.ExtendedFields {
				v, _ := lp.Average.FeatureValue(string(f))
				rows = append(rows, []string{string(f), fmt.Sprintf("%.3f", v)})
			}
			fmt.Fprintln(out, renderTable([]string{"Feature", "Average"}, rows, []columnAlignment{alignLeft, alignRight}))

			if len(lp.TopArtists) > 0 {
				artistRows := make([][]string, 0, len(lp.TopArtists))
				for i, a := range lp.TopArtists {
					artistRows = append(artistRows, []string{strconv.Itoa(i + 1), a.Name, strings.Join(a.Genres, ", ")})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Top artist", "Genres"}, artistRows,
					[]columnAlignment{alignRight, alignLeft, alignLeft}))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&timeRange, "time-range", "medium_term", "Seed window: short_term, medium_term or long_term")
	cmd.Flags().IntVar(&limit, "limit", 50, "Number of top tracks to average")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
