package core

// DBOrdering is a single ORDER BY term. Repositories whitelist the fields
// they accept before interpolating it into a query.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
