package models

import (
	"context"
	"testing"
)

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()

	client, err := CreateClient(ctx, NewClient{
		Name:  "  Maritima SARL  ",
		Email: "ops@maritima.example",
		City:  "Marseille",
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if client.Name != "Maritima SARL" {
		t.Errorf("name = %q, want trimmed", client.Name)
	}

	updated, err := UpdateClient(ctx, client.ID, NewClient{Name: "Maritima SARL", City: "Fos-sur-Mer"})
	if err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}
	if updated.City != "Fos-sur-Mer" {
		t.Errorf("city = %q after update", updated.City)
	}

	if _, err := CreateClient(ctx, NewClient{Name: ""}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := CreateClient(ctx, NewClient{Name: "X", Email: "not-an-email"}); err == nil {
		t.Error("expected error for invalid email")
	}

	if _, err := DeleteClient(ctx, client.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if _, err := GetClient(ctx, client.ID); err == nil {
		t.Error("deleted client still readable")
	}
}

func TestDeleteClientRefusedWhileDocumentsAttached(t *testing.T) {
	ctx := context.Background()

	client, err := CreateClient(ctx, NewClient{Name: "Docks du Nord"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	input := guestQuoteInput()
	input.ClientId = client.ID
	input.GuestName = ""
	input.GuestEmail = ""
	if _, err := CreateQuote(ctx, "tester", input); err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}

	if _, err := DeleteClient(ctx, client.ID); err == nil {
		t.Error("expected error deleting a client with documents")
	}
}

func TestPaginateClientsOrdersByName(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"Zeta Fret", "Alpha Cargo", "Midi Transit"} {
		if _, err := CreateClient(ctx, NewClient{Name: name}); err != nil {
			t.Fatalf("CreateClient %s: %v", name, err)
		}
	}

	connection, err := PaginateClients(ctx, nil, nil, nil)
	if err != nil {
		t.Fatalf("PaginateClients: %v", err)
	}
	var previous string
	for _, edge := range connection.Edges {
		if previous != "" && edge.Node.Name < previous {
			t.Fatalf("clients out of order: %q before %q", previous, edge.Node.Name)
		}
		previous = edge.Node.Name
	}
}

func TestPaginateClientsWalksDuplicateNames(t *testing.T) {
	ctx := context.Background()

	want := map[int]bool{}
	for _, name := range []string{"Dupont Logistique", "Dupont Logistique", "Dupont Logistique", "Durand Fret"} {
		client, err := CreateClient(ctx, NewClient{Name: name})
		if err != nil {
			t.Fatalf("CreateClient %s: %v", name, err)
		}
		want[client.ID] = true
	}

	name := "Du"
	limit := 2
	seen := map[int]bool{}
	var after *string
	pages := 0
	for {
		connection, err := PaginateClients(ctx, &limit, after, &name)
		if err != nil {
			t.Fatalf("PaginateClients: %v", err)
		}
		for _, edge := range connection.Edges {
			if seen[edge.Node.ID] {
				t.Fatalf("client id %d repeated on page %d", edge.Node.ID, pages+1)
			}
			seen[edge.Node.ID] = true
		}
		pages++
		if connection.PageInfo.HasNextPage == nil || !*connection.PageInfo.HasNextPage {
			break
		}
		cursor := connection.PageInfo.EndCursor
		after = &cursor
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}

	for id := range want {
		if !seen[id] {
			t.Errorf("client id %d missing from the walk", id)
		}
	}
}
