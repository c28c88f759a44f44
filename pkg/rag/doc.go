// Package rag provides an embeddable question answering client over a
// vector store and a language model, without the HTTP layer.
//
// The client embeds a question, retrieves similar passages from Valkey,
// Redis, PostgreSQL (pgvector) or Qdrant, asks the language model for an
// answer grounded on them and scores its confidence.
//
//	client, _ := rag.New(ctx,
//	    rag.WithValkey("localhost:6379", ""),
//	    rag.WithEmbedder(myEmbedder),
//	    rag.WithLanguageModel(myModel),
//	)
//	defer client.Close()
//
//	ans, err := client.Ask(ctx, "Can I bring my dog on board?")
//	if err != nil {
//	    // the question itself was rejected (errors.Is(err, rag.ErrInvalidQuery))
//	}
//	if ans.Err != nil {
//	    // the pipeline failed; ans.Text carries a human-readable message
//	}
package rag
