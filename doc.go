/*
Package sqlrepo is a repository layer for SQL databases that generates its SQL from Go structs.

Reads are expressed with a typed query builder and writes with repository methods that take whole models.
No SQL is written by hand for the common cases, and the generated SQL can always be inspected before it is run.

# Models

A model is a struct type. Its exported fields are its columns, including those of embedded structs, in declaration order.
The column name is the field name unless a `db` tag gives another one; `db:"-"` excludes a field.
The field whose column is named Id is the identifier. It is never written by INSERT or UPDATE statements.
A field named DomainEvents is never a column. Embedding Entity provides both fields:

	type Customer struct {
		sqlrepo.Entity
		Name  string
		Email *string `db:"EmailAddress"`
		Level int
	}

The table name is the type name, unless the type has a TableName() string method.

# Queries

Fields are referenced with selectors, functions that return a pointer to a field of the model:

	name := func(c *Customer) any { return &c.Name }

A QueryBuilder reads the values to filter on from the model passed to Query or Count:

	q := sqlrepo.NewQueryBuilder[Customer]().
		Query(&Customer{Name: "Ann"}).
		Where(name, sqlrepo.Equal).
		OrderBy(name, sqlrepo.Asc).
		WithPagination(1, 10)

which builds

	SELECT * FROM [dbo].[Customer] WHERE [Name] = N'Ann' ORDER BY [Name] ASC OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY

Conditions on nil or empty values are left out, so a single query can serve a search form whose fields are optional.
Values are written into the SQL as literals with embedded quotes doubled.
Errors from any call in the chain are returned by Build.

# Repositories

A QueryRepository runs queries and maps the rows back to models.
A CUDRepository inserts, updates and deletes models with generated statements whose values are bound as named parameters:

	INSERT INTO [dbo].[Customer] ([Name], [EmailAddress], [Level]) VALUES (@Name, @EmailAddress, @Level); SELECT SCOPE_IDENTITY();
	UPDATE [dbo].[Customer] SET [Level] = @Level WHERE [Id] = @Id
	DELETE FROM [dbo].[Customer] WHERE [Id] = @Id

# Dialects

SQL Server is the default dialect. The SQLite dialect keeps the same clauses and quoting with SQLite literals and LIMIT/OFFSET pagination.
The dialect and schema are set on the DB and shared with the builders it creates.
*/
package sqlrepo
