// Command profilesite runs the signup and signin site.
package main

import (
	"log"

	"github.com/patric-chuzhbe/profilesite/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatal(err)
	}

	err = theApp.Run()
	theApp.Close()
	if err != nil {
		log.Fatal(err)
	}
}
