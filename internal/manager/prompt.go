package manager

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// StdinPrompter renders the removal plan and requires the operator to
// type the instance name back before the removal proceeds. Anything
// else, including EOF, declines.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p *StdinPrompter) ConfirmRemoval(plan *RemovalPlan) (bool, error) {
	fmt.Fprintln(p.Out, plan.Render())
	fmt.Fprintf(p.Out, "Type %q to confirm removal: ", plan.Name)

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return strings.TrimSpace(line) == plan.Name, nil
}
