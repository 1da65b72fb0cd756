package main

import "github.com/maltedev/nykaa-review-scraper/cmd/scraper/cmd"

func main() {
	cmd.Execute()
}
