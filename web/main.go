package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-acoustic-raytracer/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes", "", "Directory of room description files (default: ./scenes or ../scenes)")
	flag.Parse()

	webServer := server.NewServer(*port, *scenesDir)

	log.Printf("Acoustic Raytracer Web Server")
	log.Printf("Render with http://localhost:%d/api/render?scene=shoebox", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
