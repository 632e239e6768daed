package driver

const (
	SaveEntryQuery = `
		MERGE (n:Entry {id: $id})
		SET n.category = $category,
			n.section = $section,
			n.title = $title,
			n.body = $body,
			n.context = $context,
			n.author = $author,
			n.embed_state = $embed_state,
			n.status = $status,
			n.atomized = $atomized,
			n.created_at = $created_at,
			n.updated_at = $updated_at
		RETURN n.id AS id
	`

	GetEntryQuery = `
		MATCH (n:Entry {id: $id})
		RETURN n.id AS id, n.category AS category, n.section AS section,
			n.title AS title, n.body AS body, n.context AS context,
			n.author AS author, n.embed_state AS embed_state,
			n.status AS status, n.atomized AS atomized,
			n.created_at AS created_at, n.updated_at AS updated_at
	`

	ListEntriesQuery = `
		MATCH (n:Entry)
		WHERE ($category = "" OR n.category = $category)
		  AND ($status = "" OR n.status = $status)
		  AND ($embed_state = "" OR n.embed_state = $embed_state)
		RETURN n.id AS id, n.category AS category, n.section AS section,
			n.title AS title, n.body AS body, n.context AS context,
			n.author AS author, n.embed_state AS embed_state,
			n.status AS status, n.atomized AS atomized,
			n.created_at AS created_at, n.updated_at AS updated_at
		ORDER BY n.id
	`

	ListCategoriesQuery = `
		MATCH (n:Entry)
		WHERE n.status = "active"
		RETURN DISTINCT n.category AS category
		ORDER BY category
	`

	// TransitionStatusQuery only succeeds when the entry is still in the
	// expected state; the returned row count tells the store whether the
	// conditional write applied.
	TransitionStatusQuery = `
		MATCH (n:Entry {id: $id})
		WHERE n.status = $from
		SET n.status = $to, n.updated_at = $updated_at
		RETURN n.id AS id
	`

	SaveVectorQuery = `
		MATCH (n:Entry {id: $id})
		SET n.embedding = $embedding, n.embed_state = "ready"
		RETURN n.id AS id
	`

	// TopKNeighborsQuery runs one vector-index probe per source entry.
	// Results are post-filtered by category on the engine side as well;
	// the WHERE clause keeps the bulk of foreign-category hits out.
	TopKNeighborsQuery = `
		MATCH (src:Entry {id: $id})
		CALL vector_search.search("entry_embedding", $k, src.embedding)
		YIELD node, similarity
		WHERE node.id <> src.id AND node.category = src.category
		  AND node.status = "active"
		RETURN node.id AS id, similarity AS score
	`

	SaveProvenanceQuery = `
		CREATE (p:Provenance {id: $id})
		SET p.op = $op,
			p.parents = $parents,
			p.children = $children,
			p.round = $round,
			p.created_at = $created_at
		WITH p
		UNWIND $parents AS pid
		MATCH (parent:Entry {id: pid})
		MERGE (parent)-[:ORIGIN_OF]->(p)
		WITH DISTINCT p
		UNWIND $children AS cid
		MATCH (child:Entry {id: cid})
		MERGE (p)-[:RESULTED_IN]->(child)
		RETURN p.id AS id
	`

	SaveDecisionQuery = `
		CREATE (d:Decision {id: $id})
		SET d.community_id = $community_id,
			d.category = $category,
			d.round = $round,
			d.kind = $kind,
			d.rationale = $rationale,
			d.created_at = $created_at
		RETURN d.id AS id
	`

	GetLineageQuery = `
		MATCH (p:Provenance)-[:RESULTED_IN]->(child:Entry {id: $id})
		RETURN p.id AS id, p.op AS op, p.parents AS parents,
			p.children AS children, p.round AS round, p.created_at AS created_at
		ORDER BY p.created_at
	`
)
