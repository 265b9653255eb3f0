// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resource

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alien-bunny/hutch"
	"github.com/alien-bunny/hutch/lib/auth"
	"github.com/alien-bunny/hutch/lib/db"
	"github.com/alien-bunny/hutch/lib/decoder"
	"github.com/alien-bunny/hutch/lib/errors"
	"github.com/alien-bunny/hutch/lib/event"
	"github.com/alien-bunny/hutch/lib/filtering"
	"github.com/alien-bunny/hutch/lib/middleware"
	"github.com/alien-bunny/hutch/lib/pagination"
	"github.com/alien-bunny/hutch/lib/query"
	"github.com/alien-bunny/hutch/lib/related"
	"github.com/alien-bunny/hutch/lib/schema"
	"github.com/alien-bunny/hutch/lib/server"
	"github.com/alien-bunny/hutch/lib/sorting"
	"github.com/alien-bunny/hutch/middlewares/dbmw"
	"github.com/lib/pq"
)

var ErrNoEndpoints = errors.New("no endpoints are enabled for this resource")

// Resource labels data for CRUD operation through API endpoints.
type Resource interface {
}

// ListDelegate helps a Controller to list resources.
//
// List executes the prepared SELECT and scans the rows into resources.
type ListDelegate interface {
	List(r *http.Request, sel *query.Select) ([]Resource, error)
}

// PostDelegate helps a Controller to handle POST for a resource.
type PostDelegate interface {
	Empty() Resource
	Insert(data Resource, r *http.Request) error
}

// GetDelegate helps a Controller to handle GET for a resource.
//
// Load executes the prepared single item SELECT and scans the row into a
// resource. A nil resource with a nil error means not found.
type GetDelegate interface {
	Load(sel *query.Select, r *http.Request) (Resource, error)
}

// PutDelegate helps a Controller to handle PUT and PATCH for a resource.
type PutDelegate interface {
	Empty() Resource
	Load(sel *query.Select, r *http.Request) (Resource, error)
	Update(data Resource, r *http.Request) error
}

// UpsertDelegate can be implemented by a PutDelegate to support retrieves and
// updates that create the missing resource instead of responding 404.
type UpsertDelegate interface {
	Insert(data Resource, r *http.Request) error
}

// DeleteDelegate helps a Controller to handle DELETE for a resource.
type DeleteDelegate interface {
	Load(sel *query.Select, r *http.Request) (Resource, error)
	Delete(data Resource, r *http.Request) error
}

// PathOverrider can be implemented by a delegate to change the path pattern for the given resource operation.
type PathOverrider interface {
	OverridePath(string) string
}

// ControllerDelegate customizes a Controller.
type ControllerDelegate interface {
	// GetName returns machine name of the resource
	GetName() string
	// GetTables returns a list of tables that this resource uses.
	// The first one is the table the listing query selects from.
	// These will be automatically checked on service install.
	GetTables() []string
	// GetSchemaSQL returns the full schema for the resource.
	GetSchemaSQL() string
	// SchemaInstalled can be used to make extra checks to
	// ensure that the complete schema is installed.
	SchemaInstalled(db.DB) bool
}

var _ server.Service = &Controller{}
var _ pagination.View = &Controller{}
var _ filtering.View = &Controller{}

// Controller represents a CRUD service.
//
// It glues the schema, the pagination/sorting/filtering strategies and the
// auth hooks around the storage delegates, and turns the whole thing into
// endpoints under /api/<name> and /api/<name>/:id.
type Controller struct {
	Formatter
	dispatcher     *event.Dispatcher
	delegate       ControllerDelegate
	schema         *schema.Schema
	errorConverter func(err *pq.Error) errors.Error

	authenticator auth.Authenticator
	authorizer    auth.Authorizer
	related       *related.Related
	paginator     pagination.Paginator
	sorter        sorting.FieldSorter
	filtering     *filtering.Filtering

	allowClientID bool
	createMissing bool

	listDelegate    ListDelegate
	listMiddlewares []middleware.Middleware

	postDelegate    PostDelegate
	postMiddlewares []middleware.Middleware

	getDelegate    GetDelegate
	getMiddlewares []middleware.Middleware

	putDelegate    PutDelegate
	putMiddlewares []middleware.Middleware

	deleteDelegate    DeleteDelegate
	deleteMiddlewares []middleware.Middleware

	ExtraEndpoints func(s *server.Server) error
}

// NewController creates a Controller with a given delegate, schema and sensible defaults.
func NewController(dispatcher *event.Dispatcher, delegate ControllerDelegate, s *schema.Schema) *Controller {
	return &Controller{
		Formatter:         &DefaultFormatter{},
		dispatcher:        dispatcher,
		delegate:          delegate,
		schema:            s,
		authenticator:     auth.NoOpAuthenticator{},
		authorizer:        auth.NoOpAuthorizer{},
		postMiddlewares:   []middleware.Middleware{dbmw.Begin()},
		putMiddlewares:    []middleware.Middleware{dbmw.Begin()},
		deleteMiddlewares: []middleware.Middleware{dbmw.Begin()},
		errorConverter: func(err *pq.Error) errors.Error {
			return errors.NewError(err.Message, err.Detail)
		},
	}
}

// Name returns the name of this Controller.
func (res *Controller) Name() string {
	return res.delegate.GetName()
}

// Schema returns the resource schema.
func (res *Controller) Schema() *schema.Schema {
	return res.schema
}

// Sorter returns the sorting strategy of the listing endpoint.
func (res *Controller) Sorter() sorting.FieldSorter {
	return res.sorter
}

// List enables the listing endpoint.
func (res *Controller) List(d ListDelegate, middlewares ...middleware.Middleware) *Controller {
	res.listDelegate = d
	res.listMiddlewares = middlewares

	return res
}

// Post enables the POST endpoint.
//
// Passing middlewares replaces the default request transaction.
func (res *Controller) Post(d PostDelegate, middlewares ...middleware.Middleware) *Controller {
	res.postDelegate = d
	if len(middlewares) > 0 {
		res.postMiddlewares = middlewares
	}

	return res
}

// Get enables the GET endpoint.
func (res *Controller) Get(d GetDelegate, middlewares ...middleware.Middleware) *Controller {
	res.getDelegate = d
	res.getMiddlewares = middlewares

	return res
}

// Put enables the PUT and PATCH endpoints.
//
// Passing middlewares replaces the default request transaction.
func (res *Controller) Put(d PutDelegate, middlewares ...middleware.Middleware) *Controller {
	res.putDelegate = d
	if len(middlewares) > 0 {
		res.putMiddlewares = middlewares
	}

	return res
}

// Delete enables the DELETE endpoint.
//
// Passing middlewares replaces the default request transaction.
func (res *Controller) Delete(d DeleteDelegate, middlewares ...middleware.Middleware) *Controller {
	res.deleteDelegate = d
	if len(middlewares) > 0 {
		res.deleteMiddlewares = middlewares
	}

	return res
}

// Authenticator sets the authenticator that resolves request credentials.
func (res *Controller) Authenticator(a auth.Authenticator) *Controller {
	res.authenticator = a
	return res
}

// Authorizer sets the authorization hooks.
func (res *Controller) Authorizer(a auth.Authorizer) *Controller {
	res.authorizer = a
	return res
}

// Related sets the related field resolver that runs after decoding.
func (res *Controller) Related(rel *related.Related) *Controller {
	res.related = rel
	return res
}

// Paginate sets the pagination strategy of the listing endpoint.
func (res *Controller) Paginate(p pagination.Paginator) *Controller {
	res.paginator = p
	return res
}

// Sort sets the sorting strategy of the listing endpoint.
func (res *Controller) Sort(s sorting.FieldSorter) *Controller {
	res.sorter = s
	return res
}

// Filter sets the filtering of the listing endpoint.
func (res *Controller) Filter(f *filtering.Filtering) *Controller {
	res.filtering = f
	return res
}

// AllowClientID allows POST payloads to carry their own id fields.
func (res *Controller) AllowClientID() *Controller {
	res.allowClientID = true
	return res
}

// CreateMissing makes GET and PUT create the resource when it does not exist
// yet. A GET creates it from the id alone.
//
// The put delegate must implement UpsertDelegate.
func (res *Controller) CreateMissing() *Controller {
	res.createMissing = true
	return res
}

// ErrorConverter overrides how Postgres errors are translated for the user.
func (res *Controller) ErrorConverter(conv func(err *pq.Error) errors.Error) *Controller {
	res.errorConverter = conv
	return res
}

// fail aborts the request if err is not nil.
//
// APIErrors keep their status and error items. Postgres constraint violations
// become a 409 conflict. Everything else is a 500.
func (res *Controller) fail(err error) {
	if err == nil {
		return
	}

	if apiErr, ok := errors.ConvertAPIError(err); ok {
		errors.Fail(apiErr.Status, apiErr)
	}

	if db.IsConstraintViolation(err) {
		converted := db.ConvertDBError(err, res.errorConverter)
		errors.Fail(http.StatusConflict, converted)
	}

	errors.Fail(http.StatusInternalServerError, db.ConvertDBError(err, res.errorConverter))
}

func (res *Controller) dispatch(e event.Event) {
	if res.dispatcher == nil {
		return
	}
	res.fail(errors.NewMultiError(res.dispatcher.Dispatch(e)))
}

// authenticate resolves the request credentials and stores them in the context.
func (res *Controller) authenticate(r *http.Request) *http.Request {
	credentials, err := res.authenticator.Authenticate(r)
	res.fail(err)

	if credentials != nil {
		r = auth.SetCredentials(r, credentials)
	}

	return r
}

func (res *Controller) idField() string {
	names := res.schema.IDFieldNames()
	if len(names) == 0 {
		return "id"
	}

	return names[0]
}

// parseID parses the :id path parameter with the schema's id field.
func (res *Controller) parseID(r *http.Request) interface{} {
	raw := server.GetParams(r).ByName("id")
	id, err := res.schema.ParseValue(res.idField(), raw)
	if err != nil {
		errors.Fail(http.StatusNotFound, nil)
	}

	return id
}

// decodeData reads the request body envelope.
func (res *Controller) decodeData(r *http.Request) map[string]interface{} {
	data, err := decoder.DecodeData(r)
	if err == decoder.NoDecoderErr {
		errors.Fail(http.StatusUnsupportedMediaType, err)
	}
	if err == decoder.MissingDataErr {
		errors.FailAPI(http.StatusBadRequest, errors.CD("invalid_body", "missing data envelope"))
	}
	if err != nil {
		errors.FailAPI(http.StatusBadRequest, errors.CD("invalid_body", err.Error()))
	}

	if res.related != nil {
		res.fail(res.related.Resolve(r, data))
	}

	return data
}

// bind converts the decoded envelope into the delegate's resource struct and validates it.
func (res *Controller) bind(data map[string]interface{}, item Resource) Resource {
	raw, err := json.Marshal(data)
	res.fail(err)

	if err := json.Unmarshal(raw, item); err != nil {
		errors.FailAPI(http.StatusBadRequest, errors.CD("invalid_body", err.Error()))
	}

	res.fail(res.schema.Validate(item))

	return item
}

// jsonString renders a decoded JSON scalar the way it appears in a url.
func jsonString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// checkClientID rejects POST payloads carrying id fields unless allowed.
func (res *Controller) checkClientID(data map[string]interface{}) {
	if res.allowClientID {
		return
	}

	for _, field := range res.schema.IDFieldNames() {
		if _, found := data[field]; found {
			errors.FailAPI(http.StatusForbidden, errors.Item{
				Code:   "invalid_id.forbidden",
				Source: &errors.Source{Pointer: "/data/" + field},
			})
		}
	}
}

// checkPayloadID validates the id of an update payload against the url.
//
// A missing id is a 422, a mismatching one is a 409. When partial is set,
// a missing id is fine.
func (res *Controller) checkPayloadID(r *http.Request, data map[string]interface{}, partial bool) {
	field := res.idField()
	value, found := data[field]
	if !found {
		if partial {
			return
		}
		errors.FailAPI(http.StatusUnprocessableEntity, errors.Item{
			Code:   "invalid_id.missing",
			Source: &errors.Source{Pointer: "/data/" + field},
		})
	}

	if jsonString(value) != server.GetParams(r).ByName("id") {
		errors.FailAPI(http.StatusConflict, errors.Item{
			Code:   "invalid_id.mismatch",
			Source: &errors.Source{Pointer: "/data/" + field},
		})
	}
}

// baseQuery builds the listing SELECT for the resource table.
func (res *Controller) baseQuery() *query.Select {
	table := res.delegate.GetName()
	if tables := res.delegate.GetTables(); len(tables) > 0 {
		table = tables[0]
	}

	return query.NewSelect(table, res.schema.Columns()...)
}

// loadQuery builds the single item SELECT, narrowed to the rows the
// authorizer lets the request see.
func (res *Controller) loadQuery(r *http.Request, id interface{}) *query.Select {
	sel := res.baseQuery().
		Where(query.Eq(res.schema.Column(res.idField()), id)).
		Limit(1)
	res.fail(res.authorizer.FilterQuery(r, sel))

	return sel
}

// itemMeta asks the paginator for single-item metadata.
func (res *Controller) itemMeta(r *http.Request, item Resource) pagination.Meta {
	if res.paginator == nil {
		return nil
	}

	meta, err := res.paginator.ItemMeta(r, res, item)
	res.fail(err)

	return meta
}

func (res *Controller) listHandler(w http.ResponseWriter, r *http.Request) {
	r = res.authenticate(r)
	res.fail(res.authorizer.AuthorizeRequest(r))

	res.dispatch(NewBeforeListEvent(r))

	sel := res.baseQuery()
	res.fail(res.authorizer.FilterQuery(r, sel))

	if res.filtering != nil {
		res.fail(res.filtering.Filter(r, res, sel))
	}

	if res.sorter != nil {
		res.fail(res.sorter.Sort(r, res, sel))
	}

	fetch := func(sel *query.Select) ([]interface{}, error) {
		items, err := res.listDelegate.List(r, sel)
		if err != nil {
			return nil, err
		}

		generic := make([]interface{}, len(items))
		for i, item := range items {
			generic[i] = item
		}

		return generic, nil
	}

	var items []interface{}
	var meta pagination.Meta
	var err error
	if res.paginator != nil {
		items, meta, err = res.paginator.Paginate(r, res, sel, fetch)
	} else {
		items, err = fetch(sel)
	}
	res.fail(err)

	res.dispatch(NewAfterListEvent(r, items, meta))

	res.Formatter.FormatMulti(items, meta, hutch.Render(r))
}

func (res *Controller) postHandler(w http.ResponseWriter, r *http.Request) {
	r = res.authenticate(r)
	res.fail(res.authorizer.AuthorizeRequest(r))

	data := res.decodeData(r)
	res.checkClientID(data)

	d := res.bind(data, res.postDelegate.Empty())

	res.fail(res.authorizer.AuthorizeCreate(r, d))

	res.dispatch(NewCRUDEvent(EventBeforePost, r, d))
	res.dispatch(NewCRUDEvent(EventDuringPost, r, d))

	res.fail(res.postDelegate.Insert(d, r))

	res.dispatch(NewCRUDEvent(EventAfterPost, r, d))

	location := "/api/" + res.delegate.GetName() + "/" + res.schema.FormatValue(res.idField(), d)
	w.Header().Set("Location", location)

	res.Formatter.FormatSingle(d, res.itemMeta(r, d), hutch.Render(r).SetCode(http.StatusCreated))
}

func (res *Controller) getHandler(w http.ResponseWriter, r *http.Request) {
	r = res.authenticate(r)
	res.fail(res.authorizer.AuthorizeRequest(r))

	id := res.parseID(r)

	res.dispatch(NewCRUDEvent(EventBeforeGet, r, nil))

	d, err := res.getDelegate.Load(res.loadQuery(r, id), r)
	res.fail(err)
	if d == nil {
		if res.createMissing {
			res.upsert(w, r, map[string]interface{}{res.idField(): id})
			return
		}
		errors.Fail(http.StatusNotFound, nil)
	}

	res.dispatch(NewCRUDEvent(EventAfterGet, r, d))

	res.Formatter.FormatSingle(d, res.itemMeta(r, d), hutch.Render(r))
}

func (res *Controller) putHandler(w http.ResponseWriter, r *http.Request) {
	res.updateHandler(w, r, false)
}

func (res *Controller) patchHandler(w http.ResponseWriter, r *http.Request) {
	res.updateHandler(w, r, true)
}

func (res *Controller) updateHandler(w http.ResponseWriter, r *http.Request, partial bool) {
	r = res.authenticate(r)
	res.fail(res.authorizer.AuthorizeRequest(r))

	id := res.parseID(r)

	data := res.decodeData(r)
	res.checkPayloadID(r, data, partial)

	existing, err := res.putDelegate.Load(res.loadQuery(r, id), r)
	res.fail(err)

	if existing == nil {
		if !partial && res.createMissing {
			res.upsert(w, r, data)
			return
		}
		errors.Fail(http.StatusNotFound, nil)
	}

	var d Resource
	if partial {
		// Overlay the payload on the stored resource, absent fields keep
		// their values.
		d = res.bind(data, existing)
	} else {
		d = res.bind(data, res.putDelegate.Empty())
	}

	res.fail(res.authorizer.AuthorizeUpdate(r, d))

	res.dispatch(NewCRUDEvent(EventBeforePut, r, d))
	res.dispatch(NewCRUDEvent(EventDuringPut, r, d))

	res.fail(res.putDelegate.Update(d, r))

	res.dispatch(NewCRUDEvent(EventAfterPut, r, d))

	res.Formatter.FormatSingle(d, res.itemMeta(r, d), hutch.Render(r))
}

// upsert creates the missing resource during an update.
func (res *Controller) upsert(w http.ResponseWriter, r *http.Request, data map[string]interface{}) {
	upserter, ok := res.putDelegate.(UpsertDelegate)
	if !ok {
		errors.Fail(http.StatusNotFound, nil)
	}

	d := res.bind(data, res.putDelegate.Empty())

	res.fail(res.authorizer.AuthorizeCreate(r, d))

	res.dispatch(NewCRUDEvent(EventBeforePost, r, d))
	res.dispatch(NewCRUDEvent(EventDuringPost, r, d))

	res.fail(upserter.Insert(d, r))

	res.dispatch(NewCRUDEvent(EventAfterPost, r, d))

	res.Formatter.FormatSingle(d, res.itemMeta(r, d), hutch.Render(r).SetCode(http.StatusCreated))
}

func (res *Controller) deleteHandler(w http.ResponseWriter, r *http.Request) {
	r = res.authenticate(r)
	res.fail(res.authorizer.AuthorizeRequest(r))

	id := res.parseID(r)

	res.dispatch(NewCRUDEvent(EventBeforeDelete, r, nil))

	d, err := res.deleteDelegate.Load(res.loadQuery(r, id), r)
	res.fail(err)
	if d == nil {
		errors.Fail(http.StatusNotFound, nil)
	}

	res.fail(res.authorizer.AuthorizeDelete(r, d))

	res.dispatch(NewCRUDEvent(EventDuringDelete, r, d))

	res.fail(res.deleteDelegate.Delete(d, r))

	res.dispatch(NewCRUDEvent(EventAfterDelete, r, d))
}

func (res *Controller) Register(srv *server.Server) error {
	if res.listDelegate == nil && res.postDelegate == nil && res.getDelegate == nil && res.putDelegate == nil && res.deleteDelegate == nil && res.ExtraEndpoints == nil {
		return ErrNoEndpoints
	}

	base := "/api/" + res.delegate.GetName()
	id := base + "/:id"

	if res.listDelegate != nil {
		path := base
		if po, ok := res.listDelegate.(PathOverrider); ok {
			path = po.OverridePath(path)
		}
		srv.Get(path, hutch.WrapHandlerFunc(res.listHandler), res.listMiddlewares...)
	}

	if res.postDelegate != nil {
		path := base
		if po, ok := res.postDelegate.(PathOverrider); ok {
			path = po.OverridePath(path)
		}
		srv.Post(path, hutch.WrapHandlerFunc(res.postHandler), res.postMiddlewares...)
	}

	if res.getDelegate != nil {
		path := id
		if po, ok := res.getDelegate.(PathOverrider); ok {
			path = po.OverridePath(path)
		}
		srv.Get(path, hutch.WrapHandlerFunc(res.getHandler), res.getMiddlewares...)
	}

	if res.putDelegate != nil {
		path := id
		if po, ok := res.putDelegate.(PathOverrider); ok {
			path = po.OverridePath(path)
		}
		srv.Put(path, hutch.WrapHandlerFunc(res.putHandler), res.putMiddlewares...)
		srv.Patch(path, hutch.WrapHandlerFunc(res.patchHandler), res.putMiddlewares...)
	}

	if res.deleteDelegate != nil {
		path := id
		if po, ok := res.deleteDelegate.(PathOverrider); ok {
			path = po.OverridePath(path)
		}
		srv.Delete(path, hutch.WrapHandlerFunc(res.deleteHandler), res.deleteMiddlewares...)
	}

	if res.ExtraEndpoints != nil {
		return res.ExtraEndpoints(srv)
	}
	return nil
}

func (res *Controller) SchemaInstalled(conn db.DB) bool {
	installed := true

	for _, table := range res.delegate.GetTables() {
		installed = installed && db.TableExists(conn, table)
	}

	return installed && res.delegate.SchemaInstalled(conn)
}

func (res *Controller) SchemaSQL() string {
	return res.delegate.GetSchemaSQL()
}
