package main

import (
	"context"
	"time"
)

// approveFormation flips the formation's approval flag so it shows up in
// the public catalog.
func (cli *commandLine) approveFormation(id string) error {
	ctx := context.Background()
	f, err := cli.catRepo.GetFormationByID(ctx, id)
	if err != nil {
		return err
	}
	f.UpdatedAt = time.Now().UTC()

	isApproved := true
	_, err = cli.catRepo.UpdateFormation(ctx, f, &isApproved)
	return err
}
