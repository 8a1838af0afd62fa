// Package main hosts the scraper entrypoint.
//
// Architecture overview:
//   - CLI: cmd builds a cobra tree (scrape, version). Viper merges defaults, an optional config file, VBW_*
//     environment variables and flags into config.Config before any command runs.
//   - Loading: the scraper.Engine asks a Fetcher for each page. The headless loader drives Chrome through chromedp
//     with images and JavaScript disabled; the static loader uses colly and suits fixture servers and quick runs.
//     Loads go through an optional per-host rate limiter and an exponential retry policy; 4xx answers other than
//     429 are not retried.
//   - Parsing: internal/vbw turns HTML snapshots into teams, standings ranks, roster links and player attributes
//     with goquery and htmlquery. Nothing there touches the network.
//   - Output: internal/output renders both tables as CSV, stores them on the local disk or in GCS, optionally
//     upserts them into Postgres and publishes a run manifest to Pub/Sub.
//   - Plumbing: zap logs every page and skipped team or player; Prometheus collectors are served on an optional
//     chi listener; progress events drive the terminal status line.
//
// Operational notes:
//   - The run is sequential: one page at a time, teams in listing order, players in roster order.
//   - A failed roster or player page is logged and skipped. A listing without team cards aborts the run.
//   - SIGINT and SIGTERM cancel the run context; no tables are written for a cancelled run.
package main
