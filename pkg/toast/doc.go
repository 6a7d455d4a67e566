// Package toast provides user-facing notifications for discuss clients.
//
// A Notifier accepts fire-and-forget notifications. Three are provided:
//
//   - Store keeps notifications in memory until dismissed and forwards each
//     one to optional sinks (the CLI prints them, a UI renders them)
//   - Hub broadcasts notifications as JSON to WebSocket clients
//   - NotifierFunc adapts a plain function
//
// # Usage
//
//	store := toast.NewStore()
//	toast.WithTitle(store, toast.TypeSuccess, "Comment Deleted", "")
//
//	for _, n := range store.List() {
//	    fmt.Println(n.Type, n.Title)
//	}
//
// # WebSocket Wire Format
//
// Every notification is sent as one text frame:
//
//	{"event":"discuss:toast","id":"…","type":"success","title":"Comment Deleted"}
//
// Client-side code listens for the event name and renders it with any toast
// library:
//
//	ws.onmessage = (e) => {
//	    const { type, title, message } = JSON.parse(e.data);
//	    showToast(type, title, message);
//	};
package toast
