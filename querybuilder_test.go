package sqlrepo_test

import (
	"errors"
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlrepo"
)

type BuilderSuite struct{}

var _ = Suite(&BuilderSuite{})

type Rank int

type Member struct {
	sqlrepo.Entity
	Name   string
	Email  *string
	Rank   Rank
	Active bool
	Joined time.Time
}

type Invoice struct {
	Id     int64
	Amount float64
}

func (Invoice) TableName() string { return "Invoices" }

type TicketStatus int

func (s TicketStatus) String() string {
	if s == 1 {
		return "Active"
	}
	return "Closed"
}

type Coordinates struct {
	Lat, Long float64
}

type Ticket struct {
	Id      int64
	Status  TicketStatus
	Timeout time.Duration
	Geo     Coordinates
	Tags    []string
}

type Shopper struct {
	Id   int64
	Name string
	City string
}

var (
	memberName   = func(m *Member) any { return &m.Name }
	memberEmail  = func(m *Member) any { return &m.Email }
	memberRank   = func(m *Member) any { return (*int)(&m.Rank) }
	memberActive = func(m *Member) any { return &m.Active }
	memberJoined = func(m *Member) any { return &m.Joined }
	memberID     = func(m *Member) any { return &m.ID }
)

func (s *BuilderSuite) TestBuild(c *C) {
	email := "o'brien@example.com"
	tests := []struct {
		summary  string
		build    func() *sqlrepo.QueryBuilder[Member]
		expected string
	}{{
		summary: "plain query",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil)
		},
		expected: "SELECT * FROM [dbo].[Member]",
	}, {
		summary: "equal string",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Name: "Ann"}).Where(memberName, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Name] = N'Ann'",
	}, {
		summary: "empty value omitted",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{}).Where(memberName, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member]",
	}, {
		summary: "nil pointer omitted",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{}).Where(memberEmail, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member]",
	}, {
		summary: "pointer dereferenced and quote escaped",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Email: &email}).Where(memberEmail, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Email] = N'o''brien@example.com'",
	}, {
		summary: "and or not-equal",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().
				Query(&Member{Name: "Ann", Rank: 3, Active: true}).
				Where(memberName, sqlrepo.NotEqual).
				AndWhere(memberActive, sqlrepo.Equal).
				OrWhere(memberRank, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Name] != N'Ann' AND [Active] = 1 OR [Rank] = 3",
	}, {
		summary: "first contributed term introduced by WHERE",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().
				Query(&Member{Rank: 2}).
				Where(memberName, sqlrepo.Equal).
				OrWhere(memberRank, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Rank] = 2",
	}, {
		summary: "like",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Name: "An"}).Where(memberName, sqlrepo.Like)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Name] LIKE N'%An%'",
	}, {
		summary: "is",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Active: false}).Where(memberActive, sqlrepo.Is)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Active] IS 0",
	}, {
		summary: "time",
		build: func() *sqlrepo.QueryBuilder[Member] {
			joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Joined: joined}).Where(memberJoined, sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Joined] = '2024-01-02 03:04:05'",
	}, {
		summary: "order by",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().
				Query(nil).
				OrderBy(memberName, sqlrepo.Asc).
				OrderBy(memberRank, sqlrepo.Desc).
				OrderBy(memberID, sqlrepo.Unordered)
		},
		expected: "SELECT * FROM [dbo].[Member] ORDER BY [Name] ASC, [Rank] DESC, [Id]",
	}, {
		summary: "first page",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).OrderBy(memberName, sqlrepo.Asc).WithPagination(1, 10)
		},
		expected: "SELECT * FROM [dbo].[Member] ORDER BY [Name] ASC OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY",
	}, {
		summary: "third page",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).OrderBy(memberName, sqlrepo.Asc).WithPagination(3, 10)
		},
		expected: "SELECT * FROM [dbo].[Member] ORDER BY [Name] ASC OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY",
	}, {
		summary: "unordered page",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).WithPagination(2, 5)
		},
		expected: "SELECT * FROM [dbo].[Member] ORDER BY (SELECT NULL) OFFSET 5 ROWS FETCH NEXT 5 ROWS ONLY",
	}, {
		summary: "zero pagination ignored",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).WithPagination(0, 10).WithPagination(1, 0)
		},
		expected: "SELECT * FROM [dbo].[Member]",
	}, {
		summary: "last pagination wins",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).OrderBy(memberID, sqlrepo.Asc).WithPagination(1, 10).WithPagination(2, 20)
		},
		expected: "SELECT * FROM [dbo].[Member] ORDER BY [Id] ASC OFFSET 20 ROWS FETCH NEXT 20 ROWS ONLY",
	}, {
		summary: "count ignores order and pagination",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().
				Count(&Member{Name: "Ann"}).
				Where(memberName, sqlrepo.Equal).
				OrderBy(memberName, sqlrepo.Asc).
				WithPagination(1, 10)
		},
		expected: "SELECT COUNT(*) FROM [dbo].[Member] WHERE [Name] = N'Ann'",
	}, {
		summary: "selector by name",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Name: "Ann"}).Where(sqlrepo.ByName[Member]("Name"), sqlrepo.Equal)
		},
		expected: "SELECT * FROM [dbo].[Member] WHERE [Name] = N'Ann'",
	}, {
		summary: "explicit table",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member](sqlrepo.Table("Members")).Query(nil)
		},
		expected: "SELECT * FROM [dbo].[Members]",
	}, {
		summary: "table of another type",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member](sqlrepo.TableOf(Invoice{})).Query(nil)
		},
		expected: "SELECT * FROM [dbo].[Invoices]",
	}, {
		summary: "unqualified table",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member](sqlrepo.InSchema("")).Query(nil)
		},
		expected: "SELECT * FROM [Member]",
	}, {
		summary: "sqlite dialect",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member](sqlrepo.Using(sqlrepo.SQLite)).
				Query(&Member{Name: "Ann"}).
				Where(memberName, sqlrepo.Equal).
				WithPagination(3, 10)
		},
		expected: "SELECT * FROM [main].[Member] WHERE [Name] = 'Ann' LIMIT 10 OFFSET 20",
	}}
	for i, test := range tests {
		comment := Commentf("test %d: %s", i, test.summary)
		b := test.build()
		sql, err := b.Build()
		c.Assert(err, IsNil, comment)
		c.Check(sql, Equals, test.expected, comment)
		// Building is repeatable.
		again, err := b.Build()
		c.Assert(err, IsNil, comment)
		c.Check(again, Equals, sql, comment)
	}
}

func (s *BuilderSuite) TestBuildEmptyConditionOmitted(c *C) {
	name := func(m *Shopper) any { return &m.Name }
	city := func(m *Shopper) any { return &m.City }
	sql, err := sqlrepo.NewQueryBuilder[Shopper]().
		Query(&Shopper{Name: "Ann", City: ""}).
		Where(name, sqlrepo.Equal).
		Where(city, sqlrepo.Equal).
		Build()
	c.Assert(err, IsNil)
	c.Check(sql, Equals, "SELECT * FROM [dbo].[Shopper] WHERE [Name] = N'Ann'")
}

func (s *BuilderSuite) TestBuildNamedKinds(c *C) {
	ticket := &Ticket{Status: 1, Timeout: time.Hour}
	status := func(m *Ticket) any { return &m.Status }
	timeout := func(m *Ticket) any { return &m.Timeout }

	sql, err := sqlrepo.NewQueryBuilder[Ticket]().Query(ticket).Where(status, sqlrepo.Equal).Build()
	c.Assert(err, IsNil)
	c.Check(sql, Equals, "SELECT * FROM [dbo].[Ticket] WHERE [Status] = 1")

	sql, err = sqlrepo.NewQueryBuilder[Ticket]().Query(ticket).Where(timeout, sqlrepo.Equal).Build()
	c.Assert(err, IsNil)
	c.Check(sql, Equals, "SELECT * FROM [dbo].[Ticket] WHERE [Timeout] = 3600000000000")
}

func (s *BuilderSuite) TestBuildUnrenderableValue(c *C) {
	ticket := &Ticket{Geo: Coordinates{1, 2}, Tags: []string{"a"}}

	_, err := sqlrepo.NewQueryBuilder[Ticket]().
		Query(ticket).
		Where(func(m *Ticket) any { return &m.Geo }, sqlrepo.Equal).
		Build()
	c.Check(err, ErrorMatches, `cannot format value of Geo: cannot render sqlrepo_test.Coordinates value as a SQL literal`)

	_, err = sqlrepo.NewQueryBuilder[Ticket]().
		Query(ticket).
		Where(func(m *Ticket) any { return &m.Tags }, sqlrepo.Equal).
		Build()
	c.Check(err, ErrorMatches, `cannot format value of Tags: cannot render \[\]string value as a SQL literal`)
}

func (s *BuilderSuite) TestValueReadAtCallTime(c *C) {
	m := &Member{Name: "Ann"}
	b := sqlrepo.NewQueryBuilder[Member]().Query(m).Where(memberName, sqlrepo.Equal)
	m.Name = "Bob"
	b.AndWhere(memberName, sqlrepo.NotEqual)
	c.Check(b.MustBuild(), Equals, "SELECT * FROM [dbo].[Member] WHERE [Name] = N'Ann' AND [Name] != N'Bob'")
}

func (s *BuilderSuite) TestInvalidSelector(c *C) {
	tests := []struct {
		summary string
		build   func() *sqlrepo.QueryBuilder[Member]
	}{{
		summary: "value instead of pointer",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(&Member{Name: "Ann"}).Where(func(m *Member) any { return m.Name }, sqlrepo.Equal)
		},
	}, {
		summary: "nil selector",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).OrderBy(nil, sqlrepo.Asc)
		},
	}, {
		summary: "unknown field name",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).Where(sqlrepo.ByName[Member]("Nope"), sqlrepo.Equal)
		},
	}, {
		summary: "excluded field",
		build: func() *sqlrepo.QueryBuilder[Member] {
			return sqlrepo.NewQueryBuilder[Member]().Query(nil).OrderBy(func(m *Member) any { return &m.DomainEvents }, sqlrepo.Asc)
		},
	}}
	for _, test := range tests {
		comment := Commentf(test.summary)
		b := test.build()
		_, err := b.Build()
		c.Assert(err, NotNil, comment)
		c.Check(errors.Is(err, sqlrepo.ErrInvalidSelector), Equals, true, comment)
		var se *sqlrepo.InvalidSelectorError
		c.Assert(errors.As(err, &se), Equals, true, comment)
		c.Check(se.Error(), Matches, "invalid field selector .*", comment)
		c.Check(b.Err(), Equals, err, comment)
	}
}

func (s *BuilderSuite) TestInvalidSelectorNamesFunction(c *C) {
	_, err := sqlrepo.NewQueryBuilder[Member]().
		Query(&Member{Name: "Ann"}).
		Where(func(m *Member) any { return m.Name }, sqlrepo.Equal).
		Build()
	var se *sqlrepo.InvalidSelectorError
	c.Assert(errors.As(err, &se), Equals, true)
	c.Check(se.Selector(), Matches, `.*TestInvalidSelectorNamesFunction.* \(.*querybuilder_test\.go:\d+\)`)
}

func (s *BuilderSuite) TestFirstErrorKept(c *C) {
	b := sqlrepo.NewQueryBuilder[Member]().
		Query(nil).
		Where(func(m *Member) any { return m.Name }, sqlrepo.Equal).
		Count(nil).
		OrderBy(memberName, sqlrepo.Asc)
	_, err := b.Build()
	c.Check(errors.Is(err, sqlrepo.ErrInvalidSelector), Equals, true)
}

func (s *BuilderSuite) TestMisuse(c *C) {
	_, err := sqlrepo.NewQueryBuilder[Member]().Where(memberName, sqlrepo.Equal).Build()
	c.Check(err, ErrorMatches, "cannot add condition before Query or Count")

	_, err = sqlrepo.NewQueryBuilder[Member]().Query(nil).Count(nil).Build()
	c.Check(err, ErrorMatches, "query already started")

	_, err = sqlrepo.NewQueryBuilder[Member]().Build()
	c.Check(err, ErrorMatches, "cannot build before Query or Count")

	_, err = sqlrepo.NewQueryBuilder[Member]().Query(nil).Where(memberName, sqlrepo.Op(9)).Build()
	c.Check(err, ErrorMatches, `unknown comparison Op\(9\)`)

	_, err = sqlrepo.NewQueryBuilder[int]().Query(nil).Build()
	c.Check(err, ErrorMatches, "can only reflect struct type, got int")

	c.Check(func() { sqlrepo.NewQueryBuilder[Member]().MustBuild() }, PanicMatches, "cannot build before Query or Count")
}

func (s *BuilderSuite) TestDialectByName(c *C) {
	d, err := sqlrepo.DialectByName("sqlserver")
	c.Assert(err, IsNil)
	c.Check(d, Equals, sqlrepo.MSSQL)
	d, err = sqlrepo.DialectByName("sqlite3")
	c.Assert(err, IsNil)
	c.Check(d, Equals, sqlrepo.SQLite)
	_, err = sqlrepo.DialectByName("oracle")
	c.Check(err, ErrorMatches, `unknown dialect "oracle"`)
}
