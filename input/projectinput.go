package input

import (
	"fmt"
	"strconv"
)

// A DomainRow is one entry of the project file's domains list. ParentID
// is empty for a parent domain.
type DomainRow struct {
	DomainID   string
	DomainPath string
	OutputDir  string
	ParentID   string
}

// ProjectInput is the parsed project file. The format is line-oriented:
//
//	line 1: header, stored but not interpreted
//	line 2: project id
//	line 3: nd, the number of domain rows that follow
//	next nd lines: domainID domainPath outputDir [parentID]
//
// Three tokens declare a parent domain, four a child whose parent must
// have been declared on an earlier row. Anything else is malformed.
type ProjectInput struct {
	Input

	Header    string
	ProjectID string
	ND        int
	Domains   []DomainRow
}

// ReadProjectFile parses the project file at path.
func ReadProjectFile(path string) (*ProjectInput, error) {
	pi := &ProjectInput{Input: Input{Path: path, Title: "Project File"}}
	if err := pi.Open(); err != nil {
		return nil, err
	}
	defer pi.Close()

	if err := pi.read(); err != nil {
		return nil, err
	}
	return pi, nil
}

func (pi *ProjectInput) read() error {
	line, err := pi.ReadLine()
	if err != nil {
		return err
	}
	pi.Header = TrimString(line)

	line, err = pi.ReadLine()
	if err != nil {
		return err
	}
	pi.ProjectID = TrimString(line)
	if pi.ProjectID == "" {
		return fmt.Errorf("%s: empty project id: %w", pi.Title, ErrMalformed)
	}

	line, err = pi.ReadLine()
	if err != nil {
		return err
	}
	pi.ND, err = strconv.Atoi(TrimString(line))
	if err != nil || pi.ND < 0 {
		return fmt.Errorf("%s: bad domain count %q: %w", pi.Title, line, ErrMalformed)
	}

	declared := make(map[string]bool)
	for d := 0; d < pi.ND; d++ {
		line, err = pi.ReadLine()
		if err != nil {
			return err
		}
		cols := SplitLine(line)

		var row DomainRow
		switch len(cols) {
		case 3:
			row = DomainRow{cols[0], cols[1], cols[2], ""}
		case 4:
			row = DomainRow{cols[0], cols[1], cols[2], cols[3]}
			if !declared[row.ParentID] {
				return fmt.Errorf(
					"%s: parent domain %s of child domain %s is not declared yet; "+
						"ensure that %s is declared before %s: %w",
					pi.Title, row.ParentID, row.DomainID,
					row.ParentID, row.DomainID, ErrMalformed)
			}
		default:
			return fmt.Errorf("%s: invalid number of parameters for domain row %q: %w",
				pi.Title, line, ErrMalformed)
		}

		declared[row.DomainID] = true
		pi.Domains = append(pi.Domains, row)
	}

	return nil
}
