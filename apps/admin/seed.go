package main

import (
	"context"
	"fmt"

	"github.com/trezcool/notex/core/course"
)

// seed loads course.DefaultCourses. Running it again refreshes their names and descriptions.
func (cli *commandLine) seed() error {
	n, err := cli.courses.Seed(context.Background(), course.DefaultCourses...)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d courses\n", n)
	return nil
}
