package progress

import "strings"

// weightClass is one row of the ordered task-weight table.
type weightClass struct {
	keywords []string
	weight   int
}

// taskWeightTable is evaluated top to bottom; the first class with a
// matching keyword wins, so heavy always outranks medium-heavy and medium.
var taskWeightTable = []weightClass{
	{keywords: []string{"download", "install", "extract", "unpack"}, weight: 10},
	{keywords: []string{"initialize", "setup", "configure", "build"}, weight: 5},
	{keywords: []string{"copy", "update", "start", "restart"}, weight: 3},
}

// defaultTaskWeight applies when no keyword matches.
const defaultTaskWeight = 1

// taskWeight returns the weight of a configuration task by name.
func taskWeight(name string) int {
	lower := strings.ToLower(name)
	for _, class := range taskWeightTable {
		for _, kw := range class.keywords {
			if strings.Contains(lower, kw) {
				return class.weight
			}
		}
	}
	return defaultTaskWeight
}
