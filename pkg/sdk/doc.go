// Package recall embeds the personal knowledge assistant in a Go program:
// it indexes saved content, searches it by meaning and answers questions
// from it, over Redis, Valkey or a local bbolt file.
//
//	client, _ := recall.New(ctx,
//	    recall.WithRedis("localhost:6379", ""),
//	    recall.WithEmbedder(myEmbedder, 768),
//	    recall.WithCompleter(myModel),
//	)
//	defer client.Close()
//
//	_, _ = client.Index(ctx, recall.Content{
//	    ID: "42", OwnerID: 7, Title: "Go generics", Summary: "Type parameters in practice",
//	})
//	hits, _ := client.Search(ctx, recall.Tenant(7), "generics", 0, -1)
//	ans := client.Ask(ctx, recall.Tenant(7), "what did I save about generics?")
//
// Ask never fails: retrieval and generation failures come back as a fixed
// fallback answer with no sources and zero confidence.
package recall
