// Package scraper drives a scrape run: it loads the competition pages in
// order, hands each snapshot to the site parsers, and assembles the teams
// and players tables.
package scraper
