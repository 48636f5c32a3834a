package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

func (cli *commandLine) addSchool(name string) error {
	now := time.Now().UTC()
	sch, err := cli.schRepo.CreateSchool(context.Background(), school.School{
		ID:        uuid.New().String(),
		Name:      core.CleanString(name),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}
	fmt.Printf("school created: %s (%s)\n", sch.Name, sch.ID)
	return nil
}
