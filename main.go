package main

import "issueboard/internal/app"

func main() {
	app.Main()
}
