package main

import "github.com/frahmantamala/reimbursement-tracker/cmd"

func main() {
	cmd.Execute()
}
