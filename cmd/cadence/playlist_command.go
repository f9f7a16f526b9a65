package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "playlist <id>",
		Short: "Show a playlist and its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.build(cmd.Context(), stackOptions{})
			if err != nil {
				return err
			}
			pl, err := st.recommender.Playlist(cmd.Context(), playlistID(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, pl)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPlaylist(pl))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// playlistID accepts a bare ID, a spotify:playlist: URI or an
// open.spotify.com link.
func playlistID(raw string) string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "spotify:playlist:"); ok {
		return rest
	}
	if i := strings.Index(raw, "/playlist/"); i >= 0 {
		id := raw[i+len("/playlist/"):]
		if j := strings.IndexAny(id, "?#/"); j >= 0 {
			id = id[:j]
		}
		return id
	}
	return raw
}

func renderPlaylist(pl domain.Playlist) string {
	owner := pl.Owner
	if owner == "" {
		owner = "-"
	}
	info := renderTable([]string{"Field", "Value"}, [][]string{
		{"Name", pl.Name},
		{"Owner", owner},
		{"Collaborative", yesNo(pl.Collaborative)},
		{"Tracks", strconv.Itoa(pl.TrackTotal)},
		{"URL", pl.URL},
	}, nil)

	rows := make([][]string, 0, len(pl.Tracks))
	for i, t := range pl.Tracks {
		rows = append(rows, []string{strconv.Itoa(i + 1), t.Name, strings.Join(t.Artists, ", "), t.AlbumName})
	}
	tracks := renderTable([]string{"#", "Track", "Artists", "Album"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
	return info + "\n" + tracks
}
