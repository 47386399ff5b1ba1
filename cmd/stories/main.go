// Command stories builds, serves and deploys a stories site.
package main

func main() {
	Execute()
}
