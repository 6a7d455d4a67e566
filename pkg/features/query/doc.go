// Package query provides a keyed client-side cache of server state and an
// optimistic mutation lifecycle on top of it.
//
// A Client holds one entry per Key. Entries are filled by Fetch, patched by
// SetQueryData, marked stale by InvalidateQueries and have their in-flight
// reads abandoned by CancelQueries:
//
//   - Fetch returns cached data while it is fresh (see WithStaleTime)
//   - InvalidateQueries forces the next Fetch to go to the server
//   - CancelQueries cancels the context of an in-flight Fetch and discards
//     its result, so a slow read cannot overwrite a newer local write
//
// Mutations run a fixed sequence of hooks around a remote operation:
//
//	OnMutate -> MutationFn -> OnError | OnSuccess -> OnSettled
//
// OnMutate finishes before MutationFn starts; exactly one of OnError and
// OnSuccess runs. The value returned by OnMutate is handed to the later
// hooks, which is how optimistic updates carry their rollback snapshot.
//
// Basic Usage:
//
//	qc := query.NewClient(query.WithStaleTime(30 * time.Second))
//
//	todos, err := query.FetchAs(ctx, qc, query.NewKey("todos"), loadTodos)
//
//	m := query.NewMutation("toggle-todo", query.MutationConfig[string, []Todo]{
//	    MutationFn: api.ToggleTodo,
//	    OnSuccess: func(ctx context.Context, id string, _ []Todo) {
//	        qc.InvalidateQueries(query.NewKey("todos"))
//	    },
//	})
//	outcome := m.Execute(ctx, "42")
package query
