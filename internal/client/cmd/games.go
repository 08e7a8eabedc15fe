package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"gamevault/internal/shared/models"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

type gamesClient struct {
	serverURL *string
}

type listOptions struct {
	page, limit      int
	platform, status string
	q, format        string
}

type gameFlags struct {
	title, platform, description, status string
	hours                                 float64
	favorite                              bool
}

func newGamesCmd(serverURL *string) *cobra.Command {
	g := &gamesClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "games", Short: "Manage your game collection"}

	var lo listOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List games, newest first",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return g.list(cmd, lo) },
	}
	list.Flags().IntVar(&lo.page, "page", 1, "Page number")
	list.Flags().IntVar(&lo.limit, "limit", 8, "Games per page")
	list.Flags().StringVar(&lo.platform, "platform", "", "Only this platform")
	list.Flags().StringVar(&lo.status, "status", "", "Only this status")
	list.Flags().StringVar(&lo.q, "q", "", "Search title and description")
	list.Flags().StringVar(&lo.format, "format", "table", "Output format: table or json")

	var af gameFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a game",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return g.add(cmd, af) },
	}
	bindGameFlags(add, &af)
	_ = add.MarkFlagRequired("title")

	var uf gameFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a game",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return g.update(cmd, args[0], uf) },
	}
	bindGameFlags(update, &uf)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a game",
		Args:  cobra.ExactArgs(1),
		RunE:  g.delete,
	}

	cmd.AddCommand(list, add, update, del)
	return cmd
}

func bindGameFlags(cmd *cobra.Command, f *gameFlags) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title")
	cmd.Flags().StringVar(&f.platform, "platform", "", "Platform")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.status, "status", "", "Status, e.g. backlog, playing, completed")
	cmd.Flags().Float64Var(&f.hours, "hours", 0, "Hours played")
	cmd.Flags().BoolVar(&f.favorite, "favorite", false, "Mark as favorite")
}

// gameBody includes only the flags the user actually set.
func gameBody(cmd *cobra.Command, f gameFlags) map[string]any {
	body := map[string]any{}
	set := func(name string, v any) {
		if cmd.Flags().Changed(name) {
			body[name] = v
		}
	}
	set("title", f.title)
	set("platform", f.platform)
	set("description", f.description)
	set("status", f.status)
	if cmd.Flags().Changed("hours") {
		body["hoursPlayed"] = f.hours
	}
	set("favorite", f.favorite)
	return body
}

func (g *gamesClient) list(cmd *cobra.Command, o listOptions) error {
	c, err := authorizedClient(*g.serverURL)
	if err != nil {
		return err
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(o.page))
	v.Set("limit", strconv.Itoa(o.limit))
	if o.platform != "" {
		v.Set("platform", o.platform)
	}
	if o.status != "" {
		v.Set("status", o.status)
	}
	if o.q != "" {
		v.Set("q", o.q)
	}
	var out models.GameList
	if err := c.do(cmd.Context(), "GET", "/api/games?"+v.Encode(), nil, &out); err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	switch o.format {
	case "json":
		return printJSON(cmd.OutOrStdout(), out)
	case "table", "":
		printGameTable(cmd.OutOrStdout(), out)
		return nil
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}
}

func (g *gamesClient) add(cmd *cobra.Command, f gameFlags) error {
	c, err := authorizedClient(*g.serverURL)
	if err != nil {
		return err
	}
	var game models.Game
	if err := c.do(cmd.Context(), "POST", "/api/games", gameBody(cmd, f), &game); err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), game)
}

func (g *gamesClient) update(cmd *cobra.Command, id string, f gameFlags) error {
	body := gameBody(cmd, f)
	if len(body) == 0 {
		return fmt.Errorf("nothing to update, set at least one field flag")
	}
	c, err := authorizedClient(*g.serverURL)
	if err != nil {
		return err
	}
	var game models.Game
	if err := c.do(cmd.Context(), "PUT", "/api/games/"+url.PathEscape(id), body, &game); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), game)
}

func (g *gamesClient) delete(cmd *cobra.Command, args []string) error {
	c, err := authorizedClient(*g.serverURL)
	if err != nil {
		return err
	}
	if err := c.do(cmd.Context(), "DELETE", "/api/games/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Deleted "+args[0]))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGameTable(w io.Writer, l models.GameList) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "PLATFORM", "STATUS", "HOURS", "FAV").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, g := range l.Data {
		fav := ""
		if g.Favorite {
			fav = "*"
		}
		t.Row(g.ID, g.Title, deref(g.Platform), deref(g.Status), strconv.FormatFloat(g.HoursPlayed, 'f', -1, 64), fav)
	}
	fmt.Fprintln(w, t.Render())

	pages := 0
	if l.Meta.Limit > 0 {
		pages = (l.Meta.Total + l.Meta.Limit - 1) / l.Meta.Limit
	}
	fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("page %d of %d, %d games", l.Meta.Page, pages, l.Meta.Total)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
