// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains code relating to model types and their processing in
sqlrepo. As much as possible, reflection code is limited to this package. It
maps struct fields to columns, resolves field selectors, classifies values for
rendering as SQL literals and scans result rows into models.
*/
package typeinfo
