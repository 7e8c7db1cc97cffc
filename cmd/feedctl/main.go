package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"backend-eventhub/internal/backend"
	"backend-eventhub/internal/config"
	"backend-eventhub/internal/db"
	"backend-eventhub/internal/feed"
	"backend-eventhub/internal/friends"
	"backend-eventhub/internal/models"
	"backend-eventhub/internal/visibility"

	"github.com/urfave/cli/v2"
)

type cliDeps struct {
	loadConfig func() config.Config
	connect    func(config.Config) (db.Querier, func(), error)
	now        func() time.Time
	out        io.Writer
}

func defaultDeps() cliDeps {
	return cliDeps{
		loadConfig: config.Load,
		connect: func(cfg config.Config) (db.Querier, func(), error) {
			pool, err := db.ConnectPostgres(cfg)
			if err != nil {
				return nil, nil, err
			}
			return pool, pool.Close, nil
		},
		now: time.Now,
		out: os.Stdout,
	}
}

func main() {
	if err := newApp(defaultDeps()).Run(os.Args); err != nil {
		log.Printf("feedctl: %v", err)
		os.Exit(1)
	}
}

func newApp(deps cliDeps) *cli.App {
	return &cli.App{
		Name:  "feedctl",
		Usage: "Inspect and maintain event feeds.",
		Commands: []*cli.Command{
			feedCommand(deps),
			pruneCommand(deps),
			migrateCommand(deps),
		},
	}
}

func feedCommand(deps cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Print the feed a viewer would see.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "uid", Usage: "external uid of the viewer", Required: true},
			&cli.StringFlag{Name: "profile-id", Usage: "profile id of the viewer", Required: true},
			&cli.Float64Flag{Name: "lat", Usage: "viewer latitude"},
			&cli.Float64Flag{Name: "lng", Usage: "viewer longitude"},
			&cli.BoolFlag{Name: "all-past", Usage: "print every past event"},
		},
		Action: func(c *cli.Context) error {
			cfg := deps.loadConfig()
			q, closeFn, err := deps.connect(cfg)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer closeFn()

			viewer := models.UserSession{
				Viewer:      models.Friend{ID: c.String("profile-id")},
				ExternalUID: c.String("uid"),
			}
			if c.IsSet("lat") && c.IsSet("lng") {
				viewer.Location = &models.Coordinate{Lat: c.Float64("lat"), Lng: c.Float64("lng")}
			}

			port := backend.NewPostgres(q, friends.NewService(q), cfg.FetchRadiusKm)
			fetched, err := port.FetchFeed(c.Context, viewer, viewer.Location)
			if err != nil {
				return fmt.Errorf("fetch feed: %w", err)
			}
			filter := visibility.NewFilter(visibility.NewPostgresStore(q), cfg.HiddenEventTTL, deps.now)
			sets := filter.Compute(c.Context, viewer.Viewer.ID)
			filter.Wait()

			res := feed.Rebuild(feed.Input{
				Events:     fetched.Events,
				Friends:    fetched.Friends,
				Viewer:     viewer,
				Visibility: sets,
				Created:    map[string]struct{}{},
				Attending:  map[string]struct{}{},
				Now:        deps.now(),
			})
			opts := feed.Options{
				EnableCategories:     cfg.EnableCategories,
				EnablePastPagination: cfg.EnablePastPagination,
				PastPageSize:         cfg.PastPageSize,
			}
			return printFeed(deps.out, res.Upcoming, feed.PastPage(res.Past, c.Bool("all-past"), opts))
		},
	}
}

func pruneCommand(deps cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "prune-hidden",
		Usage: "Delete hidden-event records older than the configured TTL.",
		Action: func(c *cli.Context) error {
			cfg := deps.loadConfig()
			q, closeFn, err := deps.connect(cfg)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer closeFn()

			ttl := cfg.HiddenEventTTL
			if ttl <= 0 {
				ttl = visibility.DefaultHiddenTTL
			}
			n, err := visibility.NewPostgresStore(q).PruneExpired(c.Context, deps.now(), ttl)
			if err != nil {
				return fmt.Errorf("prune hidden events: %w", err)
			}
			fmt.Fprintf(deps.out, "pruned %d hidden event records\n", n)
			return nil
		},
	}
}

func migrateCommand(deps cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the feed tables if they are missing.",
		Action: func(c *cli.Context) error {
			q, closeFn, err := deps.connect(deps.loadConfig())
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer closeFn()

			if err := db.EnsureSchema(c.Context, q); err != nil {
				return err
			}
			fmt.Fprintln(deps.out, "schema up to date")
			return nil
		},
	}
}

func printFeed(w io.Writer, upcoming, past []feed.FeedEvent) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tSTART\tTITLE\tLOCATION\tGOING\tDISTANCE")
	for _, section := range []struct {
		name   string
		events []feed.FeedEvent
	}{{"upcoming", upcoming}, {"past", past}} {
		for _, fe := range section.events {
			distance := "-"
			if fe.DistanceKm != nil {
				distance = fmt.Sprintf("%.1f km", *fe.DistanceKm)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				section.name,
				fe.Event.StartAt.Format(time.RFC3339),
				fe.Event.Title,
				fe.Event.Location,
				fe.AttendeeCount,
				distance,
			)
		}
	}
	return tw.Flush()
}
